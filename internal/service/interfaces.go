package service

import (
	"context"

	"chatrelay/internal/models"
)

// QueueStore is what the dispatcher needs from the persistent queue.
type QueueStore interface {
	PeekOldest(ctx context.Context) (*models.QueuedMessage, error)
	DeleteByID(ctx context.Context, id int64) (int64, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// IngestStore appends chat messages while keeping the queue bounded.
type IngestStore interface {
	Enqueue(ctx context.Context, uniqueID, userID, comment string, capacity int) (int64, bool, error)
}

// QueueCounter reports queue depth.
type QueueCounter interface {
	CountRows(ctx context.Context) (int, error)
}
