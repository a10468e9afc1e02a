package artifact

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind represents the artifact content kind.
type Kind string

const (
	KindDocument Kind = "document"
	KindCode     Kind = "code"
	KindDiagram  Kind = "diagram"
)

// Valid reports whether k is one of the known artifact kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDocument, KindCode, KindDiagram:
		return true
	}
	return false
}

// Version is one immutable entry in an artifact's version chain.
//
// Zero values:
//   - ID: uuid.Nil (invalid, assigned by the store)
//   - ArtifactID: uuid.Nil (invalid, required)
//   - VersionNumber: 0 (invalid, first version is 1)
//   - ParentVersionID: nil (only valid for version 1)
//   - Metadata: nil (no metadata)
type Version struct {
	ID              uuid.UUID
	ArtifactID      uuid.UUID
	VersionNumber   int
	ParentVersionID *uuid.UUID
	Kind            Kind
	Content         string
	ChatID          uuid.UUID
	UserID          uuid.UUID
	Metadata        map[string]any
	CreatedAt       time.Time
}

// SaveRequest carries the fields needed to append a version.
// VersionNumber and ParentVersionID are computed by the store.
type SaveRequest struct {
	ArtifactID uuid.UUID
	Kind       Kind
	Content    string
	ChatID     uuid.UUID
	UserID     uuid.UUID
	Metadata   map[string]any
}

// Store is the persistence contract for artifact version chains.
//
// Save appends the next version for req.ArtifactID: it reads the current
// max version number (0 if none) and writes max+1 with the previous latest
// as parent. Implementations must serialize this read-then-write per
// artifact id (unique constraint with retry, or a per-id lock); see
// ErrVersionConflict.
type Store interface {
	Save(ctx context.Context, req SaveRequest) (*Version, error)
	Latest(ctx context.Context, artifactID uuid.UUID) (*Version, error)
	Version(ctx context.Context, artifactID uuid.UUID, versionNumber int) (*Version, error)
	ListVersions(ctx context.Context, artifactID uuid.UUID) ([]*Version, error)

	// DeleteAfter removes all versions of artifactID created strictly after t
	// and returns the removed versions in ascending version order. Used by
	// the delete-trailing-messages flow; the surviving prefix remains a
	// valid dense chain because versions are created in order.
	DeleteAfter(ctx context.Context, artifactID uuid.UUID, t time.Time) ([]*Version, error)
}
