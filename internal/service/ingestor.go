package service

import (
	"context"
	"fmt"

	"chatrelay/internal/constants"
	apperrors "chatrelay/internal/errors"
	"chatrelay/internal/metrics"
	"chatrelay/pkg/livesource"

	"github.com/sirupsen/logrus"
)

// Ingestor stores chat events from a live source in the bounded queue.
type Ingestor struct {
	store     IngestStore
	capacity  int
	source    string
	logger    *logrus.Logger
	errLogger *apperrors.Logger
	metrics   *metrics.Registry
}

var _ livesource.Handler = (*Ingestor)(nil)

func NewIngestor(store IngestStore, capacity int, source string, logger *logrus.Logger) *Ingestor {
	if capacity <= 0 {
		capacity = constants.DefaultMaxQueueSize
	}
	return &Ingestor{
		store:     store,
		capacity:  capacity,
		source:    source,
		logger:    logger,
		errLogger: apperrors.NewLogger(logger),
		metrics:   metrics.GetRegistry(),
	}
}

func (i *Ingestor) OnConnected(roomID string) {
	i.metrics.SetGauge(metrics.SourceConnected, 1, map[string]string{LogFieldSource: i.source}, "1 while the live source is connected")
	i.logger.WithFields(logrus.Fields{
		LogFieldSource: i.source,
		LogFieldRoomID: roomID,
	}).Info("Connected to live room")
}

// OnChat enqueues the event. Failures are logged and the event is dropped.
func (i *Ingestor) OnChat(ctx context.Context, evt livesource.ChatEvent) {
	log := LogWithContext(ctx, i.logger).WithField(LogFieldSource, i.source)
	log.Info(fmt.Sprintf("%s (%s) writes: %s", evt.UniqueID, UserIDForLog(ctx, evt.UserID), evt.Comment))

	id, evicted, err := i.store.Enqueue(ctx, evt.UniqueID, evt.UserID, evt.Comment, i.capacity)
	if err != nil {
		i.metrics.IncrementCounter(metrics.StoreErrors, map[string]string{LogFieldOperation: "enqueue"}, "Queue store failures")
		i.errLogger.LogError(err, "Failed to store chat message", logrus.Fields{
			LogFieldSource:   i.source,
			LogFieldUniqueID: evt.UniqueID,
		})
		return
	}

	i.metrics.IncrementCounter(metrics.MessagesIngested, map[string]string{LogFieldSource: i.source}, "Chat messages stored in the queue")
	log.WithField(LogFieldMessageID, id).Info("Stored chat message")

	if evicted {
		i.metrics.IncrementCounter(metrics.MessagesEvicted, nil, "Oldest messages dropped because the queue was full")
		log.WithField(LogFieldCount, i.capacity).Info("Queue over capacity, evicted oldest message")
	}
}
