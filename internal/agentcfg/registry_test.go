package agentcfg_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ai/atelier/internal/agentcfg"
)

const testProvider = "google"

func seededBackend(t *testing.T) *agentcfg.MemoryBackend {
	t.Helper()
	b := agentcfg.NewMemoryBackend()
	require.NoError(t, agentcfg.SeedDefaults(b, testProvider, "gemini-2.5-flash"))
	return b
}

func TestRegistry_Load(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := agentcfg.NewRegistry(seededBackend(t), nil)

	cfg, err := reg.Load(ctx, agentcfg.AgentDocument, testProvider)
	require.NoError(t, err)
	assert.Equal(t, agentcfg.AgentDocument, cfg.AgentType)
	assert.Equal(t, "gemini-2.5-flash", cfg.ModelID)
	assert.True(t, cfg.Enabled)
	assert.NotEmpty(t, cfg.SystemPrompt)
	assert.NotEmpty(t, cfg.Parameters)
}

func TestRegistry_Load_Disabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backend := agentcfg.NewMemoryBackend()
	require.NoError(t, backend.SetConfig(agentcfg.AgentConfig{
		AgentType:    agentcfg.AgentCode,
		Provider:     testProvider,
		Enabled:      false,
		SystemPrompt: "prompt",
		ModelID:      "gemini-2.5-flash",
	}))
	reg := agentcfg.NewRegistry(backend, nil)

	_, err := reg.Load(ctx, agentcfg.AgentCode, testProvider)
	assert.ErrorIs(t, err, agentcfg.ErrAgentDisabled)
}

func TestRegistry_Load_MissingKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := agentcfg.NewRegistry(agentcfg.NewMemoryBackend(), nil)

	_, err := reg.Load(ctx, agentcfg.AgentDocument, testProvider)
	assert.ErrorIs(t, err, agentcfg.ErrInvalidConfig)
}

func TestRegistry_Load_InvalidConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{not json`},
		{"missing prompt", `{"enabled":true,"modelId":"m"}`},
		{"missing model", `{"enabled":true,"systemPrompt":"p"}`},
		{"parameter without description", `{"enabled":true,"systemPrompt":"p","modelId":"m",
			"parameters":[{"name":"operation","type":"string"}]}`},
		{"parameter with bad type", `{"enabled":true,"systemPrompt":"p","modelId":"m",
			"parameters":[{"name":"operation","type":"enum","description":"d"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := agentcfg.NewMemoryBackend()
			backend.Set(agentcfg.ConfigKey(agentcfg.AgentDiagram, testProvider), []byte(tt.raw))
			reg := agentcfg.NewRegistry(backend, nil)

			_, err := reg.Load(ctx, agentcfg.AgentDiagram, testProvider)
			assert.ErrorIs(t, err, agentcfg.ErrInvalidConfig)
		})
	}
}

type failingBackend struct{}

func (failingBackend) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestRegistry_Load_BackendUnreachable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := agentcfg.NewRegistry(failingBackend{}, nil)

	_, err := reg.Load(ctx, agentcfg.AgentDocument, testProvider)
	assert.ErrorIs(t, err, agentcfg.ErrConfigFetch)
}

type countingBackend struct {
	inner   agentcfg.Backend
	fetches atomic.Int64
}

func (b *countingBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	b.fetches.Add(1)
	return b.inner.Fetch(ctx, key)
}

func TestRegistry_Load_CachesAfterFirstFetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backend := &countingBackend{inner: seededBackend(t)}
	reg := agentcfg.NewRegistry(backend, nil)

	for range 5 {
		_, err := reg.Load(ctx, agentcfg.AgentSearch, testProvider)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), backend.fetches.Load())
}

func TestRegistry_Load_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := agentcfg.NewRegistry(seededBackend(t), nil)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, agentType := range agentcfg.AllAgents {
				cfg, err := reg.Load(ctx, agentType, testProvider)
				assert.NoError(t, err)
				assert.Equal(t, agentType, cfg.AgentType)
			}
		}()
	}
	wg.Wait()
}

func TestRegistry_SetOverride(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := agentcfg.NewRegistry(seededBackend(t), nil)

	require.NoError(t, reg.SetOverride(agentcfg.AgentCode, agentcfg.FieldModelID, "gemini-2.5-pro"))
	require.NoError(t, reg.SetOverride(agentcfg.AgentCode, agentcfg.FieldAPIKey, "user-key"))

	cfg, err := reg.Load(ctx, agentcfg.AgentCode, testProvider)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.ModelID)
	assert.Equal(t, "user-key", cfg.APIKey)

	// Overrides never touch other agent types.
	other, err := reg.Load(ctx, agentcfg.AgentDocument, testProvider)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", other.ModelID)
	assert.Empty(t, other.APIKey)
}

func TestRegistry_SetOverride_LastWriterWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := agentcfg.NewRegistry(seededBackend(t), nil)

	require.NoError(t, reg.SetOverride(agentcfg.AgentDocument, agentcfg.FieldModelID, "first"))
	require.NoError(t, reg.SetOverride(agentcfg.AgentDocument, agentcfg.FieldModelID, "second"))

	cfg, err := reg.Load(ctx, agentcfg.AgentDocument, testProvider)
	require.NoError(t, err)
	assert.Equal(t, "second", cfg.ModelID)
}

func TestRegistry_SetOverride_UnknownField(t *testing.T) {
	t.Parallel()
	reg := agentcfg.NewRegistry(seededBackend(t), nil)

	err := reg.SetOverride(agentcfg.AgentDocument, "temperature", "0.9")
	assert.ErrorIs(t, err, agentcfg.ErrUnknownField)
}

func TestRegistry_ClearOverrides(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := agentcfg.NewRegistry(seededBackend(t), nil)

	require.NoError(t, reg.SetOverride(agentcfg.AgentDocument, agentcfg.FieldModelID, "override"))
	reg.ClearOverrides(agentcfg.AgentDocument)

	cfg, err := reg.Load(ctx, agentcfg.AgentDocument, testProvider)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", cfg.ModelID)
}

func TestRegistry_Load_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := agentcfg.NewRegistry(seededBackend(t), nil)

	cfg, err := reg.Load(ctx, agentcfg.AgentDocument, testProvider)
	require.NoError(t, err)
	cfg.SystemPrompt = "mutated"
	cfg.Parameters[0].Description = "mutated"

	fresh, err := reg.Load(ctx, agentcfg.AgentDocument, testProvider)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", fresh.SystemPrompt)
	assert.NotEqual(t, "mutated", fresh.Parameters[0].Description)
}
