package constants

import "time"

// Default queue configuration values
const (
	DefaultMaxQueueSize   = 50
	DefaultQueueDelayMs   = 10000
	DefaultDeleteKey      = DeleteKeyID
	DefaultDatabasePath   = "chatrelay.db"
	DefaultPendingListMax = 100
)

// Delete keys accepted by queue.deleteKey
const (
	DeleteKeyID     = "id"
	DeleteKeyUserID = "user_id"
)

// Default rate-limit retry values
const (
	DefaultRetryBackoffMs = 5000
	DefaultMaxBackoffMs   = 60000
	DefaultMaxRetries     = 5
	DefaultBackoffFactor  = 2.0
)

// Default completion values
const (
	DefaultCompletionModel     = "gpt-3.5-turbo"
	DefaultCompletionMaxTokens = 150
	DefaultSystemPrompt        = "You are an expert assistant in software development and AI. Answer clearly, professionally and in a friendly tone."
)

// Default live source values
const (
	SourceTwitch                  = "twitch"
	SourceWebSocket               = "websocket"
	DefaultSourceType             = SourceTwitch
	DefaultChannel                = "mastercarva"
	DefaultReconnectAttempts      = 5
	DefaultReconnectBackoffMs     = 2000
	DefaultReconnectMaxBackoffMs  = 60000
	DefaultWebSocketReadLimitByte = 1 << 20
)

// Default timeout values
const (
	DefaultDatabaseRetryAttempts  = 3
	DefaultDatabaseRetryBackoffMs = 100
	DefaultDatabaseBusyTimeoutMs  = 5000
	DefaultGracefulShutdownSec    = 10
	DefaultServerPort             = 8082
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	DefaultTracingShutdownTimeout = 5 * time.Second
	DefaultQueueMonitorInterval   = 15 * time.Second
	DefaultBreakerMaxFailures     = 5
	DefaultBreakerTimeout         = 30 * time.Second
)

// Privacy settings
const (
	DefaultUserIDMaskLength = 4
)

// Encryption settings
const (
	EncryptionSalt            = "chatrelay-comment-encryption-v1"
	EncryptionKeyEnv          = "CHATRELAY_ENCRYPTION_SECRET"
	EncryptionFlagEnv         = "CHATRELAY_ENABLE_ENCRYPTION"
	MinEncryptionSecretLength = 32
)

// Buffer sizes
const (
	ServerErrorChannelSize = 1
)
