package models

import "time"

// QueuedMessage is a chat message waiting to be sent to the completion API.
// Rows are never updated; they are removed either after a successful
// completion or by FIFO eviction when the queue is over capacity.
type QueuedMessage struct {
	ID        int64     `json:"id" db:"id"`
	UniqueID  string    `json:"uniqueId" db:"uniqueId"`
	UserID    string    `json:"userId" db:"userId"`
	Comment   string    `json:"comment" db:"comment"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
