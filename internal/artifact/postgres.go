package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// saveAttempts bounds retries when two writers race on the same artifact id.
// The UNIQUE (artifact_id, version_number) constraint detects the race; the
// loser re-reads the new max and tries again.
const saveAttempts = 3

// PostgresStore implements Store with a PostgreSQL backend.
//
// Version numbering relies on the (artifact_id, version_number) uniqueness
// constraint rather than row locks: Save reads the current latest, inserts
// max+1, and retries on unique violation so concurrent saves against the
// same artifact never corrupt the chain.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore.
// A nil logger falls back to slog.Default().
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

const versionColumns = `id, artifact_id, version_number, parent_version_id,
	kind, content, chat_id, user_id, metadata, created_at`

// Save appends the next version for req.ArtifactID.
func (s *PostgresStore) Save(ctx context.Context, req SaveRequest) (*Version, error) {
	if err := validateSave(req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		v, err := s.trySave(ctx, req)
		if err == nil {
			s.logger.Debug("saved artifact version",
				"artifact_id", v.ArtifactID,
				"version", v.VersionNumber,
				"kind", v.Kind)
			return v, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("version conflict, retrying save",
			"artifact_id", req.ArtifactID,
			"attempt", attempt+1)
	}
	return nil, fmt.Errorf("save artifact %s after %d attempts: %w",
		req.ArtifactID, saveAttempts, lastErr)
}

// trySave performs one read-max-then-insert cycle.
func (s *PostgresStore) trySave(ctx context.Context, req SaveRequest) (*Version, error) {
	latest, err := s.Latest(ctx, req.ArtifactID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	next := 1
	var parent pgtype.UUID
	if latest != nil {
		next = latest.VersionNumber + 1
		parent = pgtype.UUID{Bytes: latest.ID, Valid: true}
	}

	metadata, err := marshalMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO artifact_versions
			(artifact_id, version_number, parent_version_id, kind, content, chat_id, user_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + versionColumns

	row := s.pool.QueryRow(ctx, q,
		pgtype.UUID{Bytes: req.ArtifactID, Valid: true},
		next,
		parent,
		string(req.Kind),
		req.Content,
		pgtype.UUID{Bytes: req.ChatID, Valid: true},
		pgtype.UUID{Bytes: req.UserID, Valid: true},
		metadata,
	)

	v, err := scanVersion(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("version %d for artifact %s already written: %w",
				next, req.ArtifactID, ErrVersionConflict)
		}
		return nil, fmt.Errorf("insert artifact version: %w", err)
	}

	// The constraint guarantees uniqueness; this guards against a store that
	// lost the dense-sequence invariant through external writes.
	if latest != nil && v.VersionNumber != latest.VersionNumber+1 {
		return nil, fmt.Errorf("artifact %s: wrote version %d after %d: %w",
			req.ArtifactID, v.VersionNumber, latest.VersionNumber, ErrVersionConflict)
	}
	return v, nil
}

// Latest returns the highest-numbered version for artifactID.
func (s *PostgresStore) Latest(ctx context.Context, artifactID uuid.UUID) (*Version, error) {
	const q = `
		SELECT ` + versionColumns + `
		FROM artifact_versions
		WHERE artifact_id = $1
		ORDER BY version_number DESC
		LIMIT 1`

	v, err := scanVersion(s.pool.QueryRow(ctx, q, pgtype.UUID{Bytes: artifactID, Valid: true}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest version for %s: %w", artifactID, err)
	}
	return v, nil
}

// Version returns one specific version of an artifact.
func (s *PostgresStore) Version(ctx context.Context, artifactID uuid.UUID, versionNumber int) (*Version, error) {
	const q = `
		SELECT ` + versionColumns + `
		FROM artifact_versions
		WHERE artifact_id = $1 AND version_number = $2`

	v, err := scanVersion(s.pool.QueryRow(ctx, q,
		pgtype.UUID{Bytes: artifactID, Valid: true}, versionNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get version %d for %s: %w", versionNumber, artifactID, err)
	}
	return v, nil
}

// ListVersions returns all versions of an artifact in ascending order.
func (s *PostgresStore) ListVersions(ctx context.Context, artifactID uuid.UUID) ([]*Version, error) {
	const q = `
		SELECT ` + versionColumns + `
		FROM artifact_versions
		WHERE artifact_id = $1
		ORDER BY version_number ASC`

	rows, err := s.pool.Query(ctx, q, pgtype.UUID{Bytes: artifactID, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", artifactID, err)
	}
	defer rows.Close()

	var versions []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", artifactID, err)
	}
	return versions, nil
}

// DeleteAfter removes all versions created strictly after t.
func (s *PostgresStore) DeleteAfter(ctx context.Context, artifactID uuid.UUID, t time.Time) ([]*Version, error) {
	const q = `
		DELETE FROM artifact_versions
		WHERE artifact_id = $1 AND created_at > $2
		RETURNING ` + versionColumns

	rows, err := s.pool.Query(ctx, q, pgtype.UUID{Bytes: artifactID, Valid: true}, t)
	if err != nil {
		return nil, fmt.Errorf("delete versions after %s for %s: %w", t, artifactID, err)
	}
	defer rows.Close()

	var deleted []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deleted version: %w", err)
		}
		deleted = append(deleted, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete versions after %s for %s: %w", t, artifactID, err)
	}

	sortVersionsAscending(deleted)
	s.logger.Debug("deleted artifact versions",
		"artifact_id", artifactID,
		"after", t,
		"count", len(deleted))
	return deleted, nil
}

// scanVersion reads one artifact_versions row.
func scanVersion(row pgx.Row) (*Version, error) {
	var (
		id, artifactID, chatID, userID pgtype.UUID
		parentID                       pgtype.UUID
		kind                           string
		metadata                       []byte
		createdAt                      pgtype.Timestamptz
		v                              Version
	)

	err := row.Scan(&id, &artifactID, &v.VersionNumber, &parentID,
		&kind, &v.Content, &chatID, &userID, &metadata, &createdAt)
	if err != nil {
		return nil, err
	}

	v.ID = pgUUIDToUUID(id)
	v.ArtifactID = pgUUIDToUUID(artifactID)
	v.Kind = Kind(kind)
	v.ChatID = pgUUIDToUUID(chatID)
	v.UserID = pgUUIDToUUID(userID)
	v.CreatedAt = createdAt.Time

	if parentID.Valid {
		p := pgUUIDToUUID(parentID)
		v.ParentVersionID = &p
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Metadata); err != nil {
			return nil, fmt.Errorf("decode version metadata: %w", err)
		}
	}
	return &v, nil
}

func validateSave(req SaveRequest) error {
	if req.ArtifactID == uuid.Nil {
		return ErrEmptyArtifactID
	}
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}
	return nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode version metadata: %w", err)
	}
	return data, nil
}

func sortVersionsAscending(versions []*Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber < versions[j].VersionNumber
	})
}

// pgUUIDToUUID converts pgtype.UUID to uuid.UUID.
func pgUUIDToUUID(pgUUID pgtype.UUID) uuid.UUID {
	if !pgUUID.Valid {
		return uuid.Nil
	}
	return pgUUID.Bytes
}
