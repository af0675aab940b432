package tracing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContextKey represents keys used for context values
type ContextKey string

const (
	// CycleIDKey is the context key for the dispatch cycle correlation id
	CycleIDKey ContextKey = "cycle_id"
	// StartTimeKey is the context key for the cycle start time
	StartTimeKey ContextKey = "start_time"
)

// GenerateCycleID returns a new correlation id for one dispatch cycle.
func GenerateCycleID() string {
	return uuid.NewString()
}

// WithCycleID stores a cycle id in ctx
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CycleIDKey, id)
}

// GetCycleID returns the cycle id stored in ctx, or ""
func GetCycleID(ctx context.Context) string {
	if id, ok := ctx.Value(CycleIDKey).(string); ok {
		return id
	}
	return ""
}

// WithStartTime stores the cycle start time in ctx
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, StartTimeKey, startTime)
}

// GetStartTime returns the start time stored in ctx, or the zero time
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// WithCycle attaches a fresh cycle id and start time to ctx.
func WithCycle(ctx context.Context, now time.Time) context.Context {
	return WithStartTime(WithCycleID(ctx, GenerateCycleID()), now)
}
