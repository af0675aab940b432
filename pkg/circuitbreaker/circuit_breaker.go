package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the state of a circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker stops calling an upstream that keeps failing. Only errors the
// IsFailure classifier accepts count towards tripping, so callers can let
// client-side errors such as rate limits pass through without opening it.
type CircuitBreaker struct {
	name             string
	maxFailures      uint32
	timeout          time.Duration
	halfOpenMaxCalls uint32

	// IsFailure decides whether an error counts towards tripping. Nil counts every error.
	IsFailure func(error) bool

	mu              sync.Mutex
	state           State
	failures        uint32
	lastFailureTime time.Time
	halfOpenCalls   uint32
	successCount    uint32
	requestCount    uint32

	now    func() time.Time
	logger *logrus.Logger
}

// New creates a new circuit breaker
func New(name string, maxFailures uint32, timeout time.Duration) *CircuitBreaker {
	return NewWithLogger(name, maxFailures, timeout, logrus.New())
}

// NewWithLogger creates a new circuit breaker with a custom logger
func NewWithLogger(name string, maxFailures uint32, timeout time.Duration, logger *logrus.Logger) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:             name,
		maxFailures:      maxFailures,
		timeout:          timeout,
		halfOpenMaxCalls: 1,
		state:            StateClosed,
		now:              time.Now,
		logger:           logger,
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allowRequest() {
		return &CircuitBreakerError{
			Name:  cb.name,
			State: StateOpen,
		}
	}

	err := fn(ctx)
	if err != nil && cb.countsAsFailure(err) {
		cb.onFailure()
		return err
	}

	cb.onSuccess()
	return err
}

func (cb *CircuitBreaker) countsAsFailure(err error) bool {
	// Abandoned calls say nothing about upstream health.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if cb.IsFailure == nil {
		return true
	}
	return cb.IsFailure(err)
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requestCount++
	cb.advanceLocked()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.halfOpenMaxCalls {
			cb.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// advanceLocked moves an open breaker to half-open once the timeout has passed.
func (cb *CircuitBreaker) advanceLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailureTime) >= cb.timeout {
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"state":           StateHalfOpen.String(),
		}).Info("Circuit breaker transitioned to half-open")
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successCount++
	if cb.state == StateHalfOpen {
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"state":           StateClosed.String(),
		}).Info("Circuit breaker closed after successful recovery")
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"failures":        cb.failures,
		"state":           StateOpen.String(),
	}).Warn("Circuit breaker opened due to failures")
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advanceLocked()
	return cb.state
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:            cb.name,
		State:           cb.state,
		Failures:        cb.failures,
		Requests:        cb.requestCount,
		Successes:       cb.successCount,
		LastFailureTime: cb.lastFailureTime,
	}
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name            string
	State           State
	Failures        uint32
	Requests        uint32
	Successes       uint32
	LastFailureTime time.Time
}

// CircuitBreakerError is returned while the breaker rejects calls.
type CircuitBreakerError struct {
	Name  string
	State State
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

// IsCircuitBreakerError checks if an error is a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	_, ok := err.(*CircuitBreakerError)
	return ok
}
