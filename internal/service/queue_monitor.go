package service

import (
	"context"
	"sync"
	"time"

	"chatrelay/internal/constants"
	apperrors "chatrelay/internal/errors"
	"chatrelay/internal/metrics"

	"github.com/sirupsen/logrus"
)

// QueueMonitor periodically publishes the queue depth gauge.
type QueueMonitor struct {
	store     QueueCounter
	interval  time.Duration
	logger    *logrus.Logger
	errLogger *apperrors.Logger
	metrics   *metrics.Registry
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewQueueMonitor(store QueueCounter, interval time.Duration, logger *logrus.Logger) *QueueMonitor {
	if interval <= 0 {
		interval = constants.DefaultQueueMonitorInterval
	}
	return &QueueMonitor{
		store:     store,
		interval:  interval,
		logger:    logger,
		errLogger: apperrors.NewLogger(logger),
		metrics:   metrics.GetRegistry(),
		stopCh:    make(chan struct{}),
	}
}

func (m *QueueMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Starting queue monitor")

	m.sample(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Queue monitor context cancelled, stopping")
			return
		case <-m.stopCh:
			m.logger.Info("Queue monitor stop signal received, stopping")
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

// Stop ends Start. It is safe to call more than once.
func (m *QueueMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

func (m *QueueMonitor) sample(ctx context.Context) {
	count, err := m.store.CountRows(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.errLogger.LogWarn(err, "Failed to sample queue depth")
		}
		return
	}
	m.metrics.SetGauge(metrics.QueueDepth, float64(count), nil, "Messages waiting in the queue")
	m.logger.WithField(LogFieldCount, count).Debug("Sampled queue depth")
}
