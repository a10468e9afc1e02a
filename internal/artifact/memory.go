package artifact

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with in-process state. It is used by tests
// and by the CLI when no database is configured; version chains do not
// survive a restart.
type MemoryStore struct {
	mu     sync.Mutex
	chains map[uuid.UUID][]*Version
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[uuid.UUID][]*Version)}
}

// Save appends the next version for req.ArtifactID.
func (s *MemoryStore) Save(ctx context.Context, req SaveRequest) (*Version, error) {
	if err := validateSave(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[req.ArtifactID]
	v := &Version{
		ID:         uuid.New(),
		ArtifactID: req.ArtifactID,
		Kind:       req.Kind,
		Content:    req.Content,
		ChatID:     req.ChatID,
		UserID:     req.UserID,
		Metadata:   maps.Clone(req.Metadata),
		CreatedAt:  time.Now().UTC(),
	}
	if len(chain) == 0 {
		v.VersionNumber = 1
	} else {
		latest := chain[len(chain)-1]
		v.VersionNumber = latest.VersionNumber + 1
		parent := latest.ID
		v.ParentVersionID = &parent
	}
	s.chains[req.ArtifactID] = append(chain, v)
	return copyVersion(v), nil
}

// Latest returns the highest-numbered version for artifactID.
func (s *MemoryStore) Latest(ctx context.Context, artifactID uuid.UUID) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[artifactID]
	if len(chain) == 0 {
		return nil, ErrNotFound
	}
	return copyVersion(chain[len(chain)-1]), nil
}

// Version returns one specific version of an artifact.
func (s *MemoryStore) Version(ctx context.Context, artifactID uuid.UUID, versionNumber int) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.chains[artifactID] {
		if v.VersionNumber == versionNumber {
			return copyVersion(v), nil
		}
	}
	return nil, fmt.Errorf("version %d of artifact %s: %w", versionNumber, artifactID, ErrNotFound)
}

// ListVersions returns all versions of an artifact in ascending order.
func (s *MemoryStore) ListVersions(ctx context.Context, artifactID uuid.UUID) ([]*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[artifactID]
	out := make([]*Version, len(chain))
	for i, v := range chain {
		out[i] = copyVersion(v)
	}
	return out, nil
}

// DeleteAfter removes all versions created strictly after t.
func (s *MemoryStore) DeleteAfter(ctx context.Context, artifactID uuid.UUID, t time.Time) ([]*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[artifactID]
	var kept, deleted []*Version
	for _, v := range chain {
		if v.CreatedAt.After(t) {
			deleted = append(deleted, copyVersion(v))
		} else {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		delete(s.chains, artifactID)
	} else {
		s.chains[artifactID] = kept
	}
	return deleted, nil
}

// copyVersion returns a defensive copy so callers cannot mutate stored state.
func copyVersion(v *Version) *Version {
	out := *v
	out.Metadata = maps.Clone(v.Metadata)
	if v.ParentVersionID != nil {
		p := *v.ParentVersionID
		out.ParentVersionID = &p
	}
	return &out
}
