// Package clock abstracts time so waits can be driven by tests.
package clock

import (
	"sync"
	"time"
)

// Clock is the subset of the time package used by the dispatcher and retry code.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Fake is a Clock whose waits complete immediately. Every call to After
// advances the fake time by d and records d, so tests can assert the exact
// sequence of delays without sleeping.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	onWait func(d time.Duration)
}

// NewFake returns a Fake starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// OnWait registers a hook called on every After, before the channel fires.
func (f *Fake) OnWait(fn func(d time.Duration)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onWait = fn
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	now, hook := f.now, f.onWait
	f.mu.Unlock()

	if hook != nil {
		hook(d)
	}

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Sleeps returns a copy of every duration passed to After, in order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}

// Reset clears the recorded waits.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = nil
}
