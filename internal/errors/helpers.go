package errors

import (
	"fmt"
	"net/http"
)

// Common error creators for frequent use cases

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key)
}

// NewMissingConfigError creates an error for a required setting that is absent
func NewMissingConfigError(key string) *AppError {
	return New(ErrCodeMissingConfig, fmt.Sprintf("%s is required", key)).
		WithContext("config_key", key)
}

// NewStorageError creates a queue store error with operation context
func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("queue store %s failed", operation)).
		WithContext("operation", operation)
}

// NewCompletionError classifies a failed completion call by its HTTP status.
// 429 becomes a retryable RATE_LIMIT, 404 a NOT_FOUND configuration problem,
// anything else COMPLETION_UNKNOWN.
func NewCompletionError(statusCode int, err error) *AppError {
	var appErr *AppError
	switch statusCode {
	case http.StatusTooManyRequests:
		appErr = WrapRetryable(err, ErrCodeRateLimit, "completion API rate limit exceeded")
	case http.StatusNotFound:
		appErr = Wrap(err, ErrCodeNotFound, "completion endpoint or model not found")
	default:
		appErr = Wrap(err, ErrCodeCompletion, "completion API call failed")
	}

	if statusCode > 0 {
		appErr = appErr.WithContext("status_code", statusCode)
	}
	return appErr
}

// NewMalformedResponseError creates an error for a completion reply without usable content
func NewMalformedResponseError(reason string) *AppError {
	return New(ErrCodeMalformedResponse, "completion response has no usable content").
		WithContext("reason", reason)
}

// NewLiveSourceError creates a live source connection error
func NewLiveSourceError(source string, err error) *AppError {
	return Wrap(err, ErrCodeLiveSource, fmt.Sprintf("%s live source failed", source)).
		WithContext("source", source)
}

// IsRateLimit reports whether err is a completion rate-limit error
func IsRateLimit(err error) bool {
	return HasCode(err, ErrCodeRateLimit)
}

// IsNotFound reports whether err is a completion not-found error
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// IsStorage reports whether err is a queue store error
func IsStorage(err error) bool {
	return HasCode(err, ErrCodeStorage)
}
