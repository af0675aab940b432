package config

import (
	"os"
	"path/filepath"
	"testing"

	"chatrelay/internal/constants"
	apperrors "chatrelay/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// clearEnv blanks every variable LoadConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_ORG_ID", "TWITCH_OAUTH_TOKEN",
		"CHATRELAY_DB_PATH", "CHATRELAY_CHANNEL", "CHATRELAY_SOURCE", "CHATRELAY_SOURCE_URL",
		"OPENAI_BASE_URL", "OPENAI_MODEL", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Completion.APIKey)
	assert.Equal(t, constants.DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 50, cfg.Queue.MaxSize)
	assert.Equal(t, 10000, cfg.Queue.DelayMs)
	assert.Equal(t, constants.DeleteKeyID, cfg.Queue.DeleteKey)
	assert.Equal(t, 5000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 60000, cfg.Retry.MaxBackoffMs)
	require.NotNil(t, cfg.Retry.MaxRetries)
	assert.Equal(t, 5, *cfg.Retry.MaxRetries)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Completion.Model)
	assert.Equal(t, 150, cfg.Completion.MaxTokens)
	assert.Equal(t, constants.DefaultSystemPrompt, cfg.Completion.SystemPrompt)
	assert.Equal(t, constants.SourceTwitch, cfg.Source.Type)
	assert.Equal(t, constants.DefaultChannel, cfg.Source.Channel)
	require.NotNil(t, cfg.Source.ReconnectAttempts)
	assert.Equal(t, constants.DefaultReconnectAttempts, *cfg.Source.ReconnectAttempts)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "chatrelay", cfg.Tracing.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_MissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingConfig))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoadConfig_FileValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := writeConfig(t, `{
		"database": {"path": "/var/lib/chatrelay/queue.db"},
		"queue": {"maxSize": 10, "delayMs": 2500, "deleteKey": "user_id"},
		"retry": {"initialBackoffMs": 1000, "maxBackoffMs": 8000, "maxRetries": 3},
		"completion": {"model": "gpt-4o-mini", "maxTokens": 64, "systemPrompt": "be brief"},
		"source": {"type": "websocket", "url": "ws://localhost:9000/ws", "reconnectAttempts": 0},
		"server": {"enabled": true, "port": 9100},
		"logLevel": "debug"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/chatrelay/queue.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Queue.MaxSize)
	assert.Equal(t, 2500, cfg.Queue.DelayMs)
	assert.Equal(t, constants.DeleteKeyUserID, cfg.Queue.DeleteKey)
	assert.Equal(t, 1000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 3, *cfg.Retry.MaxRetries)
	assert.Equal(t, "gpt-4o-mini", cfg.Completion.Model)
	assert.Equal(t, 64, cfg.Completion.MaxTokens)
	assert.Equal(t, "be brief", cfg.Completion.SystemPrompt)
	assert.Equal(t, constants.SourceWebSocket, cfg.Source.Type)
	assert.Equal(t, 0, *cfg.Source.ReconnectAttempts)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_ZeroMaxRetriesKept(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig(writeConfig(t, `{"retry": {"maxRetries": 0}}`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Retry.MaxRetries)
	assert.Equal(t, 0, *cfg.Retry.MaxRetries)
	assert.Equal(t, 5000, cfg.Retry.InitialBackoffMs)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_ORG_ID", "org-1")
	t.Setenv("TWITCH_OAUTH_TOKEN", "oauth:abc")
	t.Setenv("CHATRELAY_DB_PATH", "/tmp/override.db")
	t.Setenv("CHATRELAY_CHANNEL", "somechannel")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("PORT", "9200")

	path := writeConfig(t, `{"database": {"path": "file.db"}, "source": {"channel": "fromfile"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.Completion.APIKey)
	assert.Equal(t, "org-1", cfg.Completion.OrganizationID)
	assert.Equal(t, "oauth:abc", cfg.Source.OAuthToken)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "somechannel", cfg.Source.Channel)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Completion.BaseURL)
	assert.Equal(t, "gpt-4o", cfg.Completion.Model)
	assert.Equal(t, 9200, cfg.Server.Port)
}

func TestLoadConfig_SourceOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("CHATRELAY_SOURCE", "websocket")
	t.Setenv("CHATRELAY_SOURCE_URL", "ws://relay:9000/ws")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, constants.SourceWebSocket, cfg.Source.Type)
	assert.Equal(t, "ws://relay:9000/ws", cfg.Source.URL)
}

func TestLoadConfig_SecretsIgnoredInFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `{"completion": {"APIKey": "sk-file"}}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingConfig))
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		code apperrors.ErrorCode
	}{
		{
			name: "bad delete key",
			body: `{"queue": {"deleteKey": "uniqueId"}}`,
			code: apperrors.ErrCodeInvalidConfig,
		},
		{
			name: "unknown source",
			body: `{"source": {"type": "youtube"}}`,
			code: apperrors.ErrCodeInvalidConfig,
		},
		{
			name: "websocket without url",
			body: `{"source": {"type": "websocket"}}`,
			code: apperrors.ErrCodeMissingConfig,
		},
		{
			name: "negative reconnect attempts",
			body: `{"source": {"reconnectAttempts": -1}}`,
			code: apperrors.ErrCodeInvalidConfig,
		},
		{
			name: "negative max retries",
			body: `{"retry": {"maxRetries": -1}}`,
			code: apperrors.ErrCodeInvalidConfig,
		},
		{
			name: "cap below base delay",
			body: `{"retry": {"initialBackoffMs": 5000, "maxBackoffMs": 1000}}`,
			code: apperrors.ErrCodeInvalidConfig,
		},
		{
			name: "tracing sample rate out of range",
			body: `{"tracing": {"enabled": true, "useStdout": true, "sampleRate": 2}}`,
			code: apperrors.ErrCodeInvalidConfig,
		},
		{
			name: "non numeric port",
			body: `{}`,
			env:  map[string]string{"PORT": "eighty"},
			code: apperrors.ErrCodeInvalidConfig,
		},
		{
			name: "malformed json",
			body: `{"queue": `,
			code: apperrors.ErrCodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("OPENAI_API_KEY", "sk-test")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLoadConfig_BadPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := LoadConfig("../../etc/passwd")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
