package agentcfg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend reads stored configs from the agent_configs table.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a PostgresBackend over pool.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// Fetch returns the raw config JSON for key, or (nil, nil) when absent.
func (b *PostgresBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT config FROM agent_configs WHERE config_key = $1`

	var data []byte
	err := b.pool.QueryRow(ctx, q, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch agent config %q: %w", key, err)
	}
	return data, nil
}

// Upsert writes raw config JSON under key.
func (b *PostgresBackend) Upsert(ctx context.Context, key string, data []byte) error {
	const q = `
		INSERT INTO agent_configs (config_key, config)
		VALUES ($1, $2)
		ON CONFLICT (config_key)
		DO UPDATE SET config = EXCLUDED.config, updated_at = now()`

	if _, err := b.pool.Exec(ctx, q, key, data); err != nil {
		return fmt.Errorf("upsert agent config %q: %w", key, err)
	}
	return nil
}
