package artifact

import "errors"

// Sentinel errors for artifact operations.
// These are part of the Store's public API and should be checked with
// errors.Is().
var (
	// ErrNotFound is returned when the requested artifact or version does
	// not exist. An update or revert against an id with zero versions is a
	// data-integrity error, never an implicit create.
	ErrNotFound = errors.New("artifact not found")

	// ErrVersionConflict indicates two writers raced on the same artifact id.
	// Stores retry internally; callers only see this after retries are
	// exhausted.
	ErrVersionConflict = errors.New("artifact version conflict")

	// ErrInvalidKind is returned when the artifact kind is not one of
	// document, code, or diagram.
	ErrInvalidKind = errors.New("invalid artifact kind")

	// ErrEmptyArtifactID is returned when a request carries a nil artifact id.
	ErrEmptyArtifactID = errors.New("artifact id is required")
)
