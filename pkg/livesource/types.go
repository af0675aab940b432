// Package livesource connects to a live stream's chat and hands each message to a Handler.
package livesource

import "context"

// ChatEvent is one chat line from a live stream.
type ChatEvent struct {
	UniqueID string `json:"uniqueId"`
	UserID   string `json:"userId"`
	Comment  string `json:"comment"`
}

// Handler receives events from a Source. Calls arrive on the source's goroutine.
type Handler interface {
	OnConnected(roomID string)
	OnChat(ctx context.Context, evt ChatEvent)
}

// Source is a live chat connection. Run blocks until ctx is done or the
// connection fails; it returns ctx.Err() on cancellation.
type Source interface {
	Run(ctx context.Context, h Handler) error
	Name() string
}
