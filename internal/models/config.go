package models

// Config holds the application configuration. It is built once at startup
// by config.LoadConfig and treated as read-only afterwards.
type Config struct {
	Database   DatabaseConfig   `json:"database"`
	Queue      QueueConfig      `json:"queue"`
	Retry      RetryConfig      `json:"retry"`
	Completion CompletionConfig `json:"completion"`
	Source     SourceConfig     `json:"source"`
	Server     ServerConfig     `json:"server"`
	Tracing    TracingConfig    `json:"tracing"`
	LogLevel   string           `json:"logLevel"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// QueueConfig controls the persistent queue and the dispatch cadence
type QueueConfig struct {
	MaxSize   int    `json:"maxSize"`
	DelayMs   int    `json:"delayMs"`
	DeleteKey string `json:"deleteKey"`
}

// RetryConfig holds the rate-limit retry configuration.
// MaxRetries is the number of retries after the first call; nil means the
// default and 0 disables retrying.
type RetryConfig struct {
	InitialBackoffMs int  `json:"initialBackoffMs"`
	MaxBackoffMs     int  `json:"maxBackoffMs"`
	MaxRetries       *int `json:"maxRetries,omitempty"`
}

// CompletionConfig holds the completion API settings. APIKey and
// OrganizationID are only ever read from the environment.
type CompletionConfig struct {
	APIKey         string `json:"-"`
	OrganizationID string `json:"-"`
	BaseURL        string `json:"baseUrl"`
	Model          string `json:"model"`
	MaxTokens      int    `json:"maxTokens"`
	SystemPrompt   string `json:"systemPrompt"`
}

// SourceConfig selects and configures the live chat source
type SourceConfig struct {
	Type                  string `json:"type"`
	Channel               string `json:"channel"`
	Username              string `json:"username"`
	OAuthToken            string `json:"-"`
	URL                   string `json:"url"`
	ReconnectAttempts     *int   `json:"reconnectAttempts,omitempty"`
	ReconnectBackoffMs    int    `json:"reconnectBackoffMs"`
	ReconnectMaxBackoffMs int    `json:"reconnectMaxBackoffMs"`
}

// ServerConfig controls the optional status HTTP server
type ServerConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// TracingConfig contains OpenTelemetry configuration
type TracingConfig struct {
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"useStdout"`
}
