package service

// Standard field names for log entries written by this package.
const (
	// Core identifiers
	LogFieldCycleID   = "cycle_id"
	LogFieldMessageID = "message_id"
	LogFieldUniqueID  = "unique_id"
	LogFieldUserID    = "user_id"
	LogFieldRoomID    = "room_id"

	// Service and operation fields
	LogFieldComponent = "component"
	LogFieldOperation = "operation"
	LogFieldSource    = "source"
	LogFieldOutcome   = "outcome"

	// Message fields
	LogFieldComment = "comment"
	LogFieldReply   = "reply"
	LogFieldModel   = "model"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldDelay    = "delay_ms"

	// Error and debugging
	LogFieldStatusCode = "status_code"
	LogFieldRetryCount = "retry_count"
	LogFieldAttempt    = "attempt"
)

// Log levels
//
// DEBUG: per-cycle detail such as empty queue polls and token counts.
// INFO: startup and shutdown, received chat lines, delivered replies, evictions.
// WARN: rate limits, malformed replies, source reconnects.
// ERROR: storage failures, abandoned retry chains, completion configuration errors.
//
// Message patterns: "Starting [operation]", "Failed to [operation]",
// "Retrying [operation] (attempt X/Y)".
