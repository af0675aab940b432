package service

import (
	"context"

	"chatrelay/internal/constants"
	"chatrelay/internal/tracing"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
// See staticcheck SA1029 guidance
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// WithVerbose marks ctx so log helpers print full user ids.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// SanitizeUserID masks a platform user id, keeping only its last digits
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) > constants.DefaultUserIDMaskLength {
		return "***" + userID[len(userID)-constants.DefaultUserIDMaskLength:]
	}
	return "***"
}

// UserIDForLog returns a user id as it may appear in logs for ctx.
func UserIDForLog(ctx context.Context, userID string) string {
	if IsVerboseLogging(ctx) {
		return userID
	}
	return SanitizeUserID(userID)
}

// LogWithContext creates a logger entry with optional sensitive information
func LogWithContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	entry := logger.WithField("verbose", IsVerboseLogging(ctx))
	if id := tracing.GetCycleID(ctx); id != "" {
		entry = entry.WithField(LogFieldCycleID, id)
	}
	return entry
}
