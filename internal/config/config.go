package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"chatrelay/internal/constants"
	apperrors "chatrelay/internal/errors"
	"chatrelay/internal/models"
	"chatrelay/internal/security"
	"chatrelay/internal/tracing"
)

// LoadConfig builds the runtime configuration. The JSON file at path is
// optional; an empty path means defaults plus environment only.
func LoadConfig(path string) (*models.Config, error) {
	var config models.Config

	if path != "" {
		if err := security.ValidateFilePath(path); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}

		file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidConfig, "config file is not valid JSON")
		}
	}

	applyDefaults(&config)

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Database.Path == "" {
		c.Database.Path = constants.DefaultDatabasePath
	}

	if c.Queue.MaxSize <= 0 {
		c.Queue.MaxSize = constants.DefaultMaxQueueSize
	}
	if c.Queue.DelayMs <= 0 {
		c.Queue.DelayMs = constants.DefaultQueueDelayMs
	}
	if c.Queue.DeleteKey == "" {
		c.Queue.DeleteKey = constants.DefaultDeleteKey
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxRetries == nil {
		retries := constants.DefaultMaxRetries
		c.Retry.MaxRetries = &retries
	}

	if c.Completion.Model == "" {
		c.Completion.Model = constants.DefaultCompletionModel
	}
	if c.Completion.MaxTokens <= 0 {
		c.Completion.MaxTokens = constants.DefaultCompletionMaxTokens
	}
	if c.Completion.SystemPrompt == "" {
		c.Completion.SystemPrompt = constants.DefaultSystemPrompt
	}

	if c.Source.Type == "" {
		c.Source.Type = constants.DefaultSourceType
	}
	if c.Source.Channel == "" {
		c.Source.Channel = constants.DefaultChannel
	}
	if c.Source.ReconnectAttempts == nil {
		attempts := constants.DefaultReconnectAttempts
		c.Source.ReconnectAttempts = &attempts
	}
	if c.Source.ReconnectBackoffMs <= 0 {
		c.Source.ReconnectBackoffMs = constants.DefaultReconnectBackoffMs
	}
	if c.Source.ReconnectMaxBackoffMs <= 0 {
		c.Source.ReconnectMaxBackoffMs = constants.DefaultReconnectMaxBackoffMs
	}

	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}

	defaults := tracing.DefaultTracingConfig()
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.ServiceName
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = defaults.ServiceVersion
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = defaults.Environment
	}
	if c.Tracing.Enabled && c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = defaults.SampleRate
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(c *models.Config) error {
	// Secrets are never read from the config file.
	c.Completion.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Completion.OrganizationID = os.Getenv("OPENAI_ORG_ID")
	c.Source.OAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")

	if path := os.Getenv("CHATRELAY_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if channel := os.Getenv("CHATRELAY_CHANNEL"); channel != "" {
		c.Source.Channel = channel
	}
	if source := os.Getenv("CHATRELAY_SOURCE"); source != "" {
		c.Source.Type = source
	}
	if url := os.Getenv("CHATRELAY_SOURCE_URL"); url != "" {
		c.Source.URL = url
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		c.Completion.BaseURL = url
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.Completion.Model = model
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return apperrors.NewConfigError("PORT", fmt.Sprintf("PORT must be a number, got %q", port))
		}
		c.Server.Port = p
	}
	return nil
}

func validate(c *models.Config) error {
	if c.Completion.APIKey == "" {
		return apperrors.NewMissingConfigError("OPENAI_API_KEY")
	}

	switch c.Queue.DeleteKey {
	case constants.DeleteKeyID, constants.DeleteKeyUserID:
	default:
		return apperrors.NewConfigError("queue.deleteKey",
			fmt.Sprintf("queue.deleteKey must be %q or %q, got %q", constants.DeleteKeyID, constants.DeleteKeyUserID, c.Queue.DeleteKey))
	}

	switch c.Source.Type {
	case constants.SourceTwitch:
		if c.Source.Channel == "" {
			return apperrors.NewMissingConfigError("source.channel")
		}
	case constants.SourceWebSocket:
		if c.Source.URL == "" {
			return apperrors.NewMissingConfigError("source.url")
		}
	default:
		return apperrors.NewConfigError("source.type",
			fmt.Sprintf("source.type must be %q or %q, got %q", constants.SourceTwitch, constants.SourceWebSocket, c.Source.Type))
	}

	if *c.Source.ReconnectAttempts < 0 {
		return apperrors.NewConfigError("source.reconnectAttempts", "source.reconnectAttempts must not be negative")
	}

	if *c.Retry.MaxRetries < 0 {
		return apperrors.NewConfigError("retry.maxRetries", "retry.maxRetries must not be negative")
	}

	if c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return apperrors.NewConfigError("retry.maxBackoffMs", "retry.maxBackoffMs must not be below retry.initialBackoffMs")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return apperrors.NewConfigError("server.port", fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}

	if err := tracing.Validate(c.Tracing); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidConfig, "invalid tracing configuration")
	}

	return nil
}
