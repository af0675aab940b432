package service

import (
	"context"
	"sync/atomic"
	"time"

	"chatrelay/internal/clock"
	apperrors "chatrelay/internal/errors"
	"chatrelay/internal/metrics"
	"chatrelay/internal/retry"
	"chatrelay/pkg/livesource"

	"github.com/sirupsen/logrus"
)

type SourceRunnerConfig struct {
	// ReconnectAttempts is the number of consecutive reconnects before giving
	// up. Zero leaves the source down after its first failure.
	ReconnectAttempts int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// SourceRunner keeps a live source connected. The failure count resets once
// a connection reaches the room, so only consecutive failures count.
type SourceRunner struct {
	source    livesource.Source
	handler   livesource.Handler
	config    SourceRunnerConfig
	backoff   *retry.Backoff
	logger    *logrus.Logger
	errLogger *apperrors.Logger
	metrics   *metrics.Registry
}

func NewSourceRunner(source livesource.Source, handler livesource.Handler, config SourceRunnerConfig, clk clock.Clock, logger *logrus.Logger) *SourceRunner {
	if clk == nil {
		clk = clock.Real()
	}
	if config.ReconnectAttempts < 0 {
		config.ReconnectAttempts = 0
	}

	backoff := retry.NewBackoffWithClock(retry.BackoffConfig{
		InitialDelay: config.InitialBackoff,
		MaxDelay:     config.MaxBackoff,
		Multiplier:   2.0,
		MaxRetries:   config.ReconnectAttempts,
	}, clk)

	return &SourceRunner{
		source:    source,
		handler:   handler,
		config:    config,
		backoff:   backoff,
		logger:    logger,
		errLogger: apperrors.NewLogger(logger),
		metrics:   metrics.GetRegistry(),
	}
}

// Run blocks until ctx is done or reconnects are exhausted. It returns nil on
// cancellation and the last LIVE_SOURCE error otherwise.
func (r *SourceRunner) Run(ctx context.Context) error {
	name := r.source.Name()
	labels := map[string]string{LogFieldSource: name}
	var state retry.State

	for {
		tracker := &connectTracker{Handler: r.handler}
		r.logger.WithField(LogFieldSource, name).Info("Starting live source")

		err := r.source.Run(ctx, tracker)
		r.metrics.SetGauge(metrics.SourceConnected, 0, labels, "1 while the live source is connected")
		if ctx.Err() != nil {
			r.logger.WithField(LogFieldSource, name).Info("Live source stopped")
			return nil
		}

		liveErr := apperrors.NewLiveSourceError(name, err)
		r.errLogger.LogError(liveErr, "Live source disconnected")

		if tracker.connected.Load() {
			state = retry.State{}
		}

		if r.config.ReconnectAttempts == 0 {
			r.logger.WithField(LogFieldSource, name).Warn("Reconnect disabled, live source stays down")
			return liveErr
		}

		delay, ok := r.backoff.Next(&state, err)
		if !ok {
			r.errLogger.LogError(liveErr, "Giving up on live source", logrus.Fields{LogFieldAttempt: state.Retries})
			return liveErr
		}

		r.metrics.IncrementCounter(metrics.SourceReconnects, labels, "Live source reconnect attempts")
		r.logger.WithFields(logrus.Fields{
			LogFieldSource: name,
			LogFieldDelay:  delay.Milliseconds(),
		}).Warnf("Retrying live source connection (attempt %d/%d)", state.Retries, r.config.ReconnectAttempts)

		if err := r.backoff.Wait(ctx, state); err != nil {
			r.logger.WithField(LogFieldSource, name).Info("Live source stopped")
			return nil
		}
	}
}

// connectTracker records whether the wrapped handler saw a connection.
type connectTracker struct {
	livesource.Handler
	connected atomic.Bool
}

func (t *connectTracker) OnConnected(roomID string) {
	t.connected.Store(true)
	t.Handler.OnConnected(roomID)
}
