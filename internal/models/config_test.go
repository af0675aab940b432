package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_JSONDecoding(t *testing.T) {
	raw := `{
		"database": {"path": "queue.db"},
		"queue": {"maxSize": 10, "delayMs": 2500, "deleteKey": "user_id"},
		"retry": {"initialBackoffMs": 1000, "maxBackoffMs": 8000, "maxRetries": 3},
		"completion": {"model": "gpt-4o-mini", "maxTokens": 64, "systemPrompt": "be brief"},
		"source": {"type": "websocket", "url": "ws://localhost:9000/ws", "reconnectAttempts": 0},
		"server": {"enabled": true, "port": 9100},
		"logLevel": "debug"
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, "queue.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Queue.MaxSize)
	assert.Equal(t, 2500, cfg.Queue.DelayMs)
	assert.Equal(t, "user_id", cfg.Queue.DeleteKey)
	require.NotNil(t, cfg.Retry.MaxRetries)
	assert.Equal(t, 3, *cfg.Retry.MaxRetries)
	assert.Equal(t, "gpt-4o-mini", cfg.Completion.Model)
	assert.Equal(t, 64, cfg.Completion.MaxTokens)
	assert.Equal(t, "be brief", cfg.Completion.SystemPrompt)
	assert.Equal(t, "websocket", cfg.Source.Type)
	require.NotNil(t, cfg.Source.ReconnectAttempts)
	assert.Equal(t, 0, *cfg.Source.ReconnectAttempts)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfig_SecretsNeverDecodedFromJSON(t *testing.T) {
	raw := `{"completion": {"APIKey": "sk-leak", "OrganizationID": "org"}, "source": {"OAuthToken": "oauth:x"}}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))

	assert.Empty(t, cfg.Completion.APIKey)
	assert.Empty(t, cfg.Completion.OrganizationID)
	assert.Empty(t, cfg.Source.OAuthToken)
}

func TestConfig_SnakeCaseKeysAreIgnored(t *testing.T) {
	raw := `{"logLevel": "warn", "log_level": "debug", "completion": {"max_tokens": 64}}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Zero(t, cfg.Completion.MaxTokens)
}

func TestTracingConfig_CamelCaseKeys(t *testing.T) {
	raw := `{"tracing": {"enabled": true, "serviceName": "relay", "serviceVersion": "2", "otlpEndpoint": "collector:4318", "sampleRate": 0.5, "useStdout": true}}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, TracingConfig{
		ServiceName:    "relay",
		ServiceVersion: "2",
		OTLPEndpoint:   "collector:4318",
		SampleRate:     0.5,
		Enabled:        true,
		UseStdout:      true,
	}, cfg.Tracing)
}

func TestRetryConfig_MaxRetriesUnsetIsNil(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"retry": {"initialBackoffMs": 100}}`), &cfg))
	assert.Nil(t, cfg.Retry.MaxRetries)

	require.NoError(t, json.Unmarshal([]byte(`{"retry": {"maxRetries": 0}}`), &cfg))
	require.NotNil(t, cfg.Retry.MaxRetries)
	assert.Equal(t, 0, *cfg.Retry.MaxRetries)
}
