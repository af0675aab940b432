package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatrelay/internal/clock"
	"chatrelay/internal/constants"
	apperrors "chatrelay/internal/errors"
	"chatrelay/internal/metrics"
	"chatrelay/internal/retry"
	"chatrelay/internal/tracing"
	"chatrelay/pkg/completion"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Outcome is how a dispatch cycle ended.
type Outcome string

const (
	OutcomeEmpty        Outcome = "empty"
	OutcomeDelivered    Outcome = "delivered"
	OutcomeMalformed    Outcome = "malformed"
	OutcomeRateLimited  Outcome = "rate_limited"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeFailed       Outcome = "failed"
	OutcomeStorageError Outcome = "storage_error"
	OutcomeCancelled    Outcome = "cancelled"
)

// CycleResult describes one dispatch cycle.
type CycleResult struct {
	CycleID   string
	Outcome   Outcome
	MessageID int64
	// Retries is the number of rate-limit retries taken for the message.
	Retries int
	Reply   string
	// Deleted is the number of rows removed after a delivered reply.
	Deleted int64
	Err     error
}

type DispatcherConfig struct {
	QueueDelay   time.Duration
	DeleteKey    string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Backoff      retry.BackoffConfig
}

// Dispatcher drains the queue one message at a time: it sends the oldest
// message to the completion API, deletes it on a usable reply and otherwise
// leaves it in place. Rate-limited calls are retried on the same message
// before the next cycle starts, so cycles never overlap.
type Dispatcher struct {
	store     QueueStore
	client    completion.Client
	config    DispatcherConfig
	backoff   *retry.Backoff
	clock     clock.Clock
	logger    *logrus.Logger
	errLogger *apperrors.Logger
	metrics   *metrics.Registry
}

func NewDispatcher(store QueueStore, client completion.Client, config DispatcherConfig, clk clock.Clock, logger *logrus.Logger) *Dispatcher {
	if clk == nil {
		clk = clock.Real()
	}
	if config.QueueDelay <= 0 {
		config.QueueDelay = time.Duration(constants.DefaultQueueDelayMs) * time.Millisecond
	}
	if config.DeleteKey == "" {
		config.DeleteKey = constants.DefaultDeleteKey
	}
	if config.Model == "" {
		config.Model = constants.DefaultCompletionModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = constants.DefaultCompletionMaxTokens
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = constants.DefaultSystemPrompt
	}
	if config.Backoff.InitialDelay <= 0 {
		config.Backoff = retry.DefaultBackoffConfig()
	}

	return &Dispatcher{
		store:     store,
		client:    client,
		config:    config,
		backoff:   retry.NewBackoffWithClock(config.Backoff, clk),
		clock:     clk,
		logger:    logger,
		errLogger: apperrors.NewLogger(logger),
		metrics:   metrics.GetRegistry(),
	}
}

// Run executes dispatch cycles separated by the queue delay until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.WithFields(logrus.Fields{
		LogFieldComponent: "dispatcher",
		LogFieldDelay:     d.config.QueueDelay.Milliseconds(),
		"delete_key":      d.config.DeleteKey,
	}).Info("Starting dispatcher")

	for ctx.Err() == nil {
		d.RunCycle(ctx)

		select {
		case <-ctx.Done():
		case <-d.clock.After(d.config.QueueDelay):
		}
	}
	d.logger.Info("Dispatcher context cancelled, stopping")
}

// RunCycle processes at most one queued message, including any rate-limit
// retries for it, and reports what happened.
func (d *Dispatcher) RunCycle(ctx context.Context) CycleResult {
	ctx = tracing.WithCycle(ctx, d.clock.Now())
	ctx, span := tracing.StartCycleSpan(ctx)
	defer span.End()

	result := d.runCycle(ctx)
	result.CycleID = tracing.GetCycleID(ctx)

	d.metrics.IncrementCounter(metrics.DispatchCycles, map[string]string{"outcome": string(result.Outcome)}, "Dispatch cycles by outcome")
	tracing.AddSpanAttributes(ctx,
		attribute.String("chatrelay.outcome", string(result.Outcome)),
		attribute.Int64("chatrelay.message_id", result.MessageID),
		attribute.Int("chatrelay.retries", result.Retries),
	)
	if result.Err != nil {
		tracing.RecordError(ctx, result.Err)
	} else {
		tracing.SetSpanStatus(ctx, codes.Ok, "")
	}
	return result
}

func (d *Dispatcher) runCycle(ctx context.Context) CycleResult {
	log := LogWithContext(ctx, d.logger)

	msg, err := d.store.PeekOldest(ctx)
	if err != nil {
		d.metrics.IncrementCounter(metrics.StoreErrors, map[string]string{LogFieldOperation: "peek"}, "Queue store failures")
		d.errLogger.LogError(err, "Failed to read oldest queued message", logrus.Fields{LogFieldCycleID: tracing.GetCycleID(ctx)})
		return CycleResult{Outcome: OutcomeStorageError, Err: err}
	}
	if msg == nil {
		log.Debug("Queue is empty")
		return CycleResult{Outcome: OutcomeEmpty}
	}

	result := CycleResult{MessageID: msg.ID}
	fields := logrus.Fields{
		LogFieldMessageID: msg.ID,
		LogFieldUniqueID:  msg.UniqueID,
		LogFieldUserID:    UserIDForLog(ctx, msg.UserID),
	}
	log.WithFields(fields).WithField(LogFieldComment, msg.Comment).Info("Dispatching queued message")

	req := completion.Request{
		Model:        d.config.Model,
		SystemPrompt: d.config.SystemPrompt,
		UserText:     msg.Comment,
		MaxTokens:    d.config.MaxTokens,
	}

	var resp *completion.Response
	attempt := 0
	state, err := d.backoff.RetryWithNotify(ctx, func() error {
		attempt++
		start := time.Now()
		r, callErr := d.client.Complete(ctx, req)
		d.metrics.RecordTimer(metrics.CompletionDuration, time.Since(start), nil, "Completion API call latency")
		if callErr != nil {
			return classifyCompletionError(callErr)
		}
		resp = r
		return nil
	}, apperrors.IsRateLimit, func(state retry.State, delay time.Duration) {
		d.metrics.IncrementCounter(metrics.RateLimitRetries, nil, "Rate-limited completion calls that were retried")
		log.WithFields(fields).WithFields(logrus.Fields{
			LogFieldRetryCount: state.Retries,
			LogFieldDelay:      delay.Milliseconds(),
		}).Warnf("Rate limited by completion API, retrying (attempt %d/%d)", state.Retries, d.config.Backoff.MaxRetries)
	})
	result.Retries = state.Retries

	if err != nil {
		result.Err = err
		switch {
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			result.Outcome = OutcomeCancelled
			log.WithFields(fields).Info("Dispatch cancelled, message kept")
		case apperrors.IsRateLimit(err):
			result.Outcome = OutcomeRateLimited
			d.errLogger.LogError(err, "Rate limit retries exhausted, message kept for a later cycle", fields, logrus.Fields{LogFieldRetryCount: state.Retries})
		case apperrors.IsNotFound(err):
			result.Outcome = OutcomeNotFound
			d.errLogger.LogError(err, "Completion endpoint or model not found, check the base URL and model configuration", fields, logrus.Fields{LogFieldModel: d.config.Model})
		default:
			result.Outcome = OutcomeFailed
			d.errLogger.LogError(err, "Failed to get completion", fields, logrus.Fields{LogFieldAttempt: attempt})
		}
		return result
	}

	d.metrics.AddToCounter(metrics.CompletionTokensUse, float64(resp.PromptTokens), map[string]string{"kind": "prompt"}, "Completion tokens used")
	d.metrics.AddToCounter(metrics.CompletionTokensUse, float64(resp.CompletionTokens), map[string]string{"kind": "completion"}, "Completion tokens used")

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		result.Outcome = OutcomeMalformed
		result.Err = apperrors.NewMalformedResponseError(fmt.Sprintf("empty reply (finish reason %q)", resp.FinishReason))
		d.errLogger.LogWarn(result.Err, "Completion reply had no content, message kept", fields)
		return result
	}
	result.Reply = reply

	log.WithFields(fields).WithFields(logrus.Fields{
		LogFieldReply: reply,
		LogFieldModel: resp.Model,
	}).Info("Completion reply received")

	deleted, err := d.deleteDelivered(ctx, msg.ID, msg.UserID)
	if err != nil {
		d.metrics.IncrementCounter(metrics.StoreErrors, map[string]string{LogFieldOperation: "delete"}, "Queue store failures")
		d.errLogger.LogError(err, "Failed to delete delivered message", fields)
		result.Outcome = OutcomeStorageError
		result.Err = err
		return result
	}
	result.Deleted = deleted
	result.Outcome = OutcomeDelivered

	if deleted == 0 {
		log.WithFields(fields).Warn("Delivered message was already gone from the queue")
	} else {
		log.WithFields(fields).WithField(LogFieldCount, deleted).Info("Removed delivered message from queue")
	}
	return result
}

func (d *Dispatcher) deleteDelivered(ctx context.Context, id int64, userID string) (int64, error) {
	if d.config.DeleteKey == constants.DeleteKeyUserID {
		return d.store.DeleteByUserID(ctx, userID)
	}
	return d.store.DeleteByID(ctx, id)
}

// classifyCompletionError turns a client error into an AppError keyed on the
// HTTP status. Context errors pass through unchanged.
func classifyCompletionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.NewCompletionError(completion.StatusCode(err), err)
}
