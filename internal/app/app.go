// Package app provides application initialization and wiring.
//
// App is the container that connects configuration, Genkit, storage, the
// per-agent config registry, and the orchestrator. Setup builds it; Close
// releases everything in reverse order.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-ai/atelier/internal/agentcfg"
	"github.com/atelier-ai/atelier/internal/artifact"
	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/orchestrator"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/tools"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit       *genkit.Genkit
	DBPool       *pgxpool.Pool // nil when running on in-memory stores
	Artifacts    artifact.Store
	Sessions     session.Store
	AgentConfigs *agentcfg.Registry
	Tools        *tools.Builder
	Orchestrator *orchestrator.Orchestrator

	otelShutdown func(context.Context) error
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.logger().Info("shutting down application")

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.logger().Warn("shutting down tracer provider", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger().Info("database pool closed")
	}
	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
