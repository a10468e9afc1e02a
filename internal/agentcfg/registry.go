package agentcfg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Backend is the key-value source of stored agent configs.
// Keys encode "<agentType>_<provider>". A missing key returns (nil, nil);
// errors mean the backend itself was unreachable.
type Backend interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Override field names accepted by Registry.SetOverride.
const (
	FieldModelID      = "modelId"
	FieldSystemPrompt = "systemPrompt"
	FieldAPIKey       = "apiKey"
)

// snapshot is the registry's immutable cache state. Readers load it
// atomically and never see partial updates; writers clone, modify, and swap.
type snapshot struct {
	configs   map[string]*AgentConfig
	overrides map[AgentType]map[string]string
}

// Registry resolves agent configs lazily and caches them process-wide.
//
// Loads for the same key are idempotent: a key is fetched at most until the
// first successful parse, after which every Load serves from the cached
// snapshot. Overrides apply last-writer-wins on top of a copy of the cached
// config, so they are visible to later Loads without mutating stored state.
type Registry struct {
	backend Backend
	logger  *slog.Logger

	// mu serializes snapshot swaps; reads go through state only.
	mu    sync.Mutex
	state atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry over backend.
// A nil logger falls back to slog.Default().
func NewRegistry(backend Backend, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{backend: backend, logger: logger}
	r.state.Store(&snapshot{
		configs:   map[string]*AgentConfig{},
		overrides: map[AgentType]map[string]string{},
	})
	return r
}

// ConfigKey builds the backend lookup key for an (agent type, provider) pair.
func ConfigKey(agentType AgentType, provider string) string {
	return fmt.Sprintf("%s_%s", agentType, provider)
}

// Load resolves the config for agentType under provider.
//
// Returns ErrAgentDisabled when the config is valid but switched off, so the
// caller can omit the tool without treating it as a failure. The returned
// config is a copy with any registered overrides already applied.
func (r *Registry) Load(ctx context.Context, agentType AgentType, provider string) (*AgentConfig, error) {
	key := ConfigKey(agentType, provider)

	cfg, ok := r.state.Load().configs[key]
	if !ok {
		loaded, err := r.fetch(ctx, agentType, provider, key)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	out := cfg.clone()
	r.applyOverrides(out)
	if !out.Enabled {
		return nil, fmt.Errorf("agent %s/%s: %w", agentType, provider, ErrAgentDisabled)
	}
	return out, nil
}

// fetch pulls one config from the backend and publishes it to the cache.
// Concurrent fetches for the same key may both hit the backend; the parse is
// deterministic, so whichever lands last wins harmlessly.
func (r *Registry) fetch(ctx context.Context, agentType AgentType, provider, key string) (*AgentConfig, error) {
	data, err := r.backend.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: key %q: %v", ErrConfigFetch, key, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: no stored config for key %q", ErrInvalidConfig, key)
	}

	cfg, err := parseConfig(agentType, provider, data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.state.Load()
	next := &snapshot{
		configs:   make(map[string]*AgentConfig, len(cur.configs)+1),
		overrides: cur.overrides,
	}
	for k, v := range cur.configs {
		next.configs[k] = v
	}
	next.configs[key] = cfg
	r.state.Store(next)

	r.logger.Debug("loaded agent config",
		"agent", agentType, "provider", provider, "enabled", cfg.Enabled)
	return cfg, nil
}

// SetOverride registers a per-request override for one agent type, applied
// on top of the stored config at every subsequent Load. Last writer wins.
func (r *Registry) SetOverride(agentType AgentType, field, value string) error {
	switch field {
	case FieldModelID, FieldSystemPrompt, FieldAPIKey:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.state.Load()
	next := &snapshot{
		configs:   cur.configs,
		overrides: make(map[AgentType]map[string]string, len(cur.overrides)+1),
	}
	for t, fields := range cur.overrides {
		cp := make(map[string]string, len(fields))
		for k, v := range fields {
			cp[k] = v
		}
		next.overrides[t] = cp
	}
	if next.overrides[agentType] == nil {
		next.overrides[agentType] = map[string]string{}
	}
	next.overrides[agentType][field] = value
	r.state.Store(next)
	return nil
}

// ClearOverrides drops all overrides for one agent type.
func (r *Registry) ClearOverrides(agentType AgentType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.state.Load()
	if _, ok := cur.overrides[agentType]; !ok {
		return
	}
	next := &snapshot{
		configs:   cur.configs,
		overrides: make(map[AgentType]map[string]string, len(cur.overrides)),
	}
	for t, fields := range cur.overrides {
		if t == agentType {
			continue
		}
		next.overrides[t] = fields
	}
	r.state.Store(next)
}

func (r *Registry) applyOverrides(cfg *AgentConfig) {
	fields := r.state.Load().overrides[cfg.AgentType]
	for field, value := range fields {
		switch field {
		case FieldModelID:
			cfg.ModelID = value
		case FieldSystemPrompt:
			cfg.SystemPrompt = value
		case FieldAPIKey:
			cfg.APIKey = value
		}
	}
}
