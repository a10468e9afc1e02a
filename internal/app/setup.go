package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/atelier-ai/atelier/internal/agentcfg"
	"github.com/atelier-ai/atelier/internal/artifact"
	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/database"
	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/observability"
	"github.com/atelier-ai/atelier/internal/orchestrator"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/tools"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := log.New(log.Config{
		Level: cfg.SlogLevel(),
		JSON:  cfg.LogJSON,
	})
	a := &App{Config: cfg, Logger: logger}

	// On error, release anything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first, so Genkit's TracerProvider is ready before Init.
	otelShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: "atelier",
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = otelShutdown

	if err := provideStores(ctx, a); err != nil {
		return nil, err
	}

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Tools = tools.NewBuilder(g, a.AgentConfigs, a.Artifacts, cfg.SearxURL, nil, nil, logger)
	a.Orchestrator = orchestrator.New(g, logger)

	logger.Info("application initialized",
		"provider", cfg.Provider,
		"model", cfg.ModelName,
		"persistent", a.DBPool != nil,
	)
	return a, nil
}

// provideStores wires persistence. With a DATABASE_URL everything lands in
// PostgreSQL (after running migrations); without one the app degrades to
// in-memory stores seeded with default agent configs.
func provideStores(ctx context.Context, a *App) error {
	cfg := a.Config

	if cfg.DatabaseURL == "" {
		a.Logger.Warn("no DATABASE_URL set, running on in-memory stores; nothing will persist")

		backend := agentcfg.NewMemoryBackend()
		if err := agentcfg.SeedDefaults(backend, cfg.Provider, cfg.FullModelName()); err != nil {
			return fmt.Errorf("seeding agent configs: %w", err)
		}
		a.AgentConfigs = agentcfg.NewRegistry(backend, a.Logger)
		a.Artifacts = artifact.NewMemoryStore()
		a.Sessions = session.NewMemoryStore()
		return nil
	}

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	a.DBPool = pool

	backend := agentcfg.NewPostgresBackend(pool)
	if err := seedMissingConfigs(ctx, backend, cfg); err != nil {
		return fmt.Errorf("seeding agent configs: %w", err)
	}
	a.AgentConfigs = agentcfg.NewRegistry(backend, a.Logger)
	a.Artifacts = artifact.NewPostgresStore(pool, a.Logger)
	a.Sessions = session.NewPostgresStore(pool, a.Logger)
	return nil
}

// seedMissingConfigs writes default agent configs for any agent type that
// has none stored yet. Existing rows are never touched, so operator edits
// survive restarts.
func seedMissingConfigs(ctx context.Context, backend *agentcfg.PostgresBackend, cfg *config.Config) error {
	for _, def := range agentcfg.DefaultConfigs(cfg.Provider, cfg.FullModelName()) {
		key := agentcfg.ConfigKey(def.AgentType, def.Provider)
		existing, err := backend.Fetch(ctx, key)
		if err != nil {
			return fmt.Errorf("checking config %s: %w", key, err)
		}
		if existing != nil {
			continue
		}
		data, err := json.Marshal(def)
		if err != nil {
			return fmt.Errorf("encoding default config %s: %w", key, err)
		}
		if err := backend.Upsert(ctx, key, data); err != nil {
			return fmt.Errorf("storing default config %s: %w", key, err)
		}
	}
	return nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)

	default: // gemini / googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with google provider")
		}
	}

	return g, nil
}
