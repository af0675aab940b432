// Package completion talks to a chat-completion API on behalf of the dispatcher.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Request is a single system-plus-user completion call.
type Request struct {
	Model        string
	SystemPrompt string
	UserText     string
	MaxTokens    int
}

// Response carries the first choice of a completion.
type Response struct {
	Text             string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// StatusError is a completion failure that carries the upstream HTTP status.
// StatusCode is zero when no response was received.
type StatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("completion request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("completion request failed: %s", e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// IsRateLimited reports whether the API rejected the call with 429.
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// IsNotFound reports whether the API answered 404, usually a wrong model or base URL.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
