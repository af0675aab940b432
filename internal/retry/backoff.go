package retry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"chatrelay/internal/clock"
)

// BackoffConfig contains configuration for capped exponential backoff.
// The k-th retry (k >= 1) waits min(InitialDelay * Multiplier^k, MaxDelay).
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
	MaxRetries   int           `json:"max_retries"`
	Jitter       bool          `json:"jitter"`
}

// DefaultBackoffConfig returns the completion API rate-limit schedule:
// 5s base, doubling, capped at 60s, five retries.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 5 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   5,
		Jitter:       false,
	}
}

// State is the explicit state of one retry chain.
type State struct {
	Retries      int
	NextEligible time.Time
	LastErr      error
}

// Exhausted reports whether no retries remain under config.
func (s State) Exhausted(config BackoffConfig) bool {
	return s.Retries >= config.MaxRetries
}

// Backoff implements exponential backoff with optional jitter
type Backoff struct {
	config BackoffConfig
	clock  clock.Clock
}

// NewBackoff creates a new exponential backoff instance using the real clock
func NewBackoff(config BackoffConfig) *Backoff {
	return NewBackoffWithClock(config, clock.Real())
}

// NewBackoffWithClock creates a backoff whose waits go through c
func NewBackoffWithClock(config BackoffConfig, c clock.Clock) *Backoff {
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	if c == nil {
		c = clock.Real()
	}
	return &Backoff{
		config: config,
		clock:  c,
	}
}

// Config returns the configuration in use
func (b *Backoff) Config() BackoffConfig {
	return b.config
}

// Next records a failure on state and schedules the next retry. It returns
// false, leaving state untouched apart from LastErr, once MaxRetries retries
// have already been taken.
func (b *Backoff) Next(state *State, err error) (time.Duration, bool) {
	state.LastErr = err
	if state.Exhausted(b.config) {
		return 0, false
	}

	state.Retries++
	delay := b.Delay(state.Retries)
	state.NextEligible = b.clock.Now().Add(delay)
	return delay, true
}

// Wait blocks until state.NextEligible or ctx is done
func (b *Backoff) Wait(ctx context.Context, state State) error {
	delay := state.NextEligible.Sub(b.clock.Now())
	if delay <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.clock.After(delay):
		return ctx.Err()
	}
}

// Retry executes the operation, retrying every error
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	return b.RetryWithPredicate(ctx, operation, func(error) bool { return true })
}

// RetryWithPredicate executes the operation with exponential backoff, using a predicate to determine if errors are retryable
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	_, err := b.RetryWithNotify(ctx, operation, isRetryable, nil)
	return err
}

// RetryWithNotify is RetryWithPredicate with a hook invoked before each wait.
// It returns the final chain state so callers can tell an exhausted chain
// from a non-retryable failure.
func (b *Backoff) RetryWithNotify(ctx context.Context, operation func() error, isRetryable func(error) bool, notify func(state State, delay time.Duration)) (State, error) {
	var state State

	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			state.LastErr = nil
			return state, nil
		}

		if !isRetryable(err) {
			state.LastErr = err
			return state, err
		}

		delay, ok := b.Next(&state, err)
		if !ok {
			return state, err
		}

		if notify != nil {
			notify(state, delay)
		}

		if err := b.Wait(ctx, state); err != nil {
			return state, err
		}
	}
}

// Delay returns the wait before the given retry (1-based)
func (b *Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}

	delay := float64(b.config.InitialDelay) * math.Pow(b.config.Multiplier, float64(retry))

	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}

	// Add jitter if enabled (±25% randomness)
	if b.config.Jitter {
		jitter := delay * 0.25
		randomValue := secureFloat64()
		delay += (randomValue - 0.5) * 2 * jitter

		if delay < 0 {
			delay = float64(b.config.InitialDelay)
		}
		if delay > float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
		}
	}

	return time.Duration(delay)
}

// Schedule lists the waits of a full chain, one per retry
func (b *Backoff) Schedule() []time.Duration {
	out := make([]time.Duration, 0, b.config.MaxRetries)
	for k := 1; k <= b.config.MaxRetries; k++ {
		out = append(out, b.Delay(k))
	}
	return out
}

// secureFloat64 generates a cryptographically secure float64 between 0 and 1
func secureFloat64() float64 {
	max := big.NewInt(0).SetUint64(math.MaxUint64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return float64(time.Now().UnixNano()%1000000) / 1000000.0
	}

	return float64(n.Uint64()) / float64(math.MaxUint64)
}
