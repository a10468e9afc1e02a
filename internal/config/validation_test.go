package config

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validBaseConfig returns a Config with all required fields set.
func validBaseConfig() *Config {
	return &Config{
		Provider:           ProviderGemini,
		ModelName:          "gemini-2.5-flash",
		MaxSteps:           5,
		MaxHistoryMessages: 100,
		SinkCapacity:       64,
		TurnTimeoutSeconds: 120,
		SearxURL:           "http://localhost:8888",
		LogLevel:           "info",
		Environment:        "dev",
	}
}

func TestValidate_Success(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")
	require.NoError(t, validBaseConfig().Validate())
}

func TestValidate_OllamaNeedsNoAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := validBaseConfig()
	cfg.Provider = ProviderOllama
	cfg.ModelName = "llama3.3"
	require.NoError(t, cfg.Validate())
}

func TestValidate_MissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	err := validBaseConfig().Validate()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrConfigNil)
}

func TestValidate_Failures(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"unknown provider", func(c *Config) { c.Provider = "anthropic" }, ErrInvalidProvider},
		{"empty model name", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"zero max steps", func(c *Config) { c.MaxSteps = 0 }, ErrInvalidMaxSteps},
		{"excessive max steps", func(c *Config) { c.MaxSteps = 51 }, ErrInvalidMaxSteps},
		{"zero sink capacity", func(c *Config) { c.SinkCapacity = 0 }, ErrInvalidSinkCapacity},
		{"zero timeout", func(c *Config) { c.TurnTimeoutSeconds = 0 }, ErrInvalidTimeout},
		{"non-postgres database url", func(c *Config) { c.DatabaseURL = "mysql://u:p@h/db" }, ErrInvalidDatabaseURL},
		{"searx url without scheme", func(c *Config) { c.SearxURL = "localhost:8888" }, ErrInvalidSearxURL},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_EmptyDatabaseURLAllowed(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")
	cfg := validBaseConfig()
	cfg.DatabaseURL = ""
	assert.NoError(t, cfg.Validate())
}

func TestMarshalJSON_MasksDatabaseURL(t *testing.T) {
	cfg := validBaseConfig()
	cfg.DatabaseURL = "postgres://atelier:super_secret_password@db:5432/atelier"

	out := cfg.String()
	assert.NotContains(t, out, "super_secret_password")
	assert.Contains(t, out, maskedValue)
	// Non-sensitive fields stay readable.
	assert.Contains(t, out, "gemini-2.5-flash")
}

func TestMaskSecret(t *testing.T) {
	assert.Empty(t, maskSecret(""))
	assert.Equal(t, maskedValue, maskSecret("short"))
	masked := maskSecret("abcdefghijklmnop")
	assert.True(t, strings.HasPrefix(masked, "ab"))
	assert.True(t, strings.HasSuffix(masked, "op"))
	assert.NotContains(t, masked, "cdefghijklmn")
}

func TestFullModelName(t *testing.T) {
	cfg := validBaseConfig()
	assert.Equal(t, "googleai/gemini-2.5-flash", cfg.FullModelName())

	cfg.Provider = ProviderOllama
	cfg.ModelName = "llama3.3"
	assert.Equal(t, "ollama/llama3.3", cfg.FullModelName())

	cfg.ModelName = "custom/already-qualified"
	assert.Equal(t, "custom/already-qualified", cfg.FullModelName())
}

func TestSlogLevel(t *testing.T) {
	cfg := validBaseConfig()
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		cfg.LogLevel = level
		assert.Equal(t, want, cfg.SlogLevel())
	}
}
