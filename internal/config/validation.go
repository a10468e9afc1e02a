package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxSteps indicates the tool-step bound is out of range.
	ErrInvalidMaxSteps = errors.New("invalid max steps")

	// ErrInvalidSinkCapacity indicates the event buffer size is out of range.
	ErrInvalidSinkCapacity = errors.New("invalid sink capacity")

	// ErrInvalidTimeout indicates the turn timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid turn timeout")

	// ErrInvalidDatabaseURL indicates DATABASE_URL cannot be parsed.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")

	// ErrInvalidSearxURL indicates the SearXNG base URL is invalid.
	ErrInvalidSearxURL = errors.New("invalid searx URL")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

var validProviders = []string{ProviderGemini, ProviderGoogleAI, ProviderOllama}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if !slices.Contains(validProviders, c.Provider) {
		return fmt.Errorf("%w: %q (supported: %v)", ErrInvalidProvider, c.Provider, validProviders)
	}

	// Gemini needs its API key up front; Ollama runs locally without one.
	if c.Provider != ProviderOllama && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.MaxSteps < 1 || c.MaxSteps > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidMaxSteps, c.MaxSteps)
	}

	if c.SinkCapacity < 1 || c.SinkCapacity > 65536 {
		return fmt.Errorf("%w: must be between 1 and 65536, got %d", ErrInvalidSinkCapacity, c.SinkCapacity)
	}

	if c.TurnTimeoutSeconds < 1 || c.TurnTimeoutSeconds > 3600 {
		return fmt.Errorf("%w: must be between 1 and 3600 seconds, got %d", ErrInvalidTimeout, c.TurnTimeoutSeconds)
	}

	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			return fmt.Errorf("%w: expected a postgres:// URL", ErrInvalidDatabaseURL)
		}
	}

	if c.SearxURL != "" {
		u, err := url.Parse(c.SearxURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %q", ErrInvalidSearxURL, c.SearxURL)
		}
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("%w: %q (supported: %v)", ErrInvalidLogLevel, c.LogLevel, validLogLevels)
	}

	return nil
}
