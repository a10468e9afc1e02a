package agentcfg

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryBackend is an in-process Backend for tests and DB-less startup.
type MemoryBackend struct {
	mu      sync.RWMutex
	configs map[string][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{configs: make(map[string][]byte)}
}

// Fetch returns the stored raw config, or (nil, nil) when key is absent.
func (b *MemoryBackend) Fetch(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.configs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set stores raw config JSON under key.
func (b *MemoryBackend) Set(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configs[key] = data
}

// SetConfig marshals cfg and stores it under its own config key.
func (b *MemoryBackend) SetConfig(cfg AgentConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config for %s/%s: %w", cfg.AgentType, cfg.Provider, err)
	}
	b.Set(ConfigKey(cfg.AgentType, cfg.Provider), data)
	return nil
}

// SeedDefaults populates the backend with a working default config for every
// agent type under provider, all bound to modelID. Used by the CLI when no
// database is configured.
func SeedDefaults(b *MemoryBackend, provider, modelID string) error {
	for _, cfg := range DefaultConfigs(provider, modelID) {
		if err := b.SetConfig(cfg); err != nil {
			return err
		}
	}
	return nil
}
