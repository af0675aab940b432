package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryableDBOperationNoReturn_Success(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	operation := func() error {
		callCount++
		return nil
	}

	err := retryableDBOperationNoReturn(ctx, operation, "test operation")
	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryableDBOperationNoReturn_SuccessAfterRetries(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	operation := func() error {
		callCount++
		if callCount < 3 {
			return errors.New("database is locked")
		}
		return nil
	}

	err := retryableDBOperationNoReturn(ctx, operation, "test operation")
	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryableDBOperationNoReturn_NonRetryableError(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	operation := func() error {
		callCount++
		return errors.New("no such table: comments")
	}

	err := retryableDBOperationNoReturn(ctx, operation, "test operation")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "non-retryable")
	assert.Equal(t, 1, callCount)
}

func TestRetryableDBOperationNoReturn_MaxAttemptsReached(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	operation := func() error {
		callCount++
		return errors.New("database is locked")
	}

	err := retryableDBOperationNoReturn(ctx, operation, "test operation")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, callCount)
}

func TestRetryableDBOperationNoReturn_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	operation := func() error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return errors.New("database is locked")
	}

	err := retryableDBOperationNoReturn(ctx, operation, "test operation")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, callCount)
}

func TestRetryableDBOperationNoReturn_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	callCount := 0
	operation := func() error {
		callCount++
		time.Sleep(60 * time.Millisecond)
		return errors.New("database is locked")
	}

	err := retryableDBOperationNoReturn(ctx, operation, "test operation")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, callCount)
}

func TestRetryableDBOperation_ReturnsValue(t *testing.T) {
	callCount := 0
	value, err := retryableDBOperation(context.Background(), func() (int64, error) {
		callCount++
		if callCount == 1 {
			return 0, errors.New("disk I/O error")
		}
		return 42, nil
	}, "test operation")

	assert.NoError(t, err)
	assert.Equal(t, int64(42), value)
	assert.Equal(t, 2, callCount)
}

func TestIsRetryableDBError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked"), true},
		{"table is locked", errors.New("database table is locked: comments"), true},
		{"disk I/O error", errors.New("disk I/O error"), true},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"wrapped context error", fmt.Errorf("operation failed: %w", context.Canceled), false},
		{"no such table", errors.New("no such table: comments"), false},
		{"constraint", errors.New("NOT NULL constraint failed"), false},
		{"random error", errors.New("some random error"), false},
		{"mixed case is not matched", errors.New("Database Is Locked"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryableDBError(tt.err))
		})
	}
}
