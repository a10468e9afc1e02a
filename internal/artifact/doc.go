// Package artifact provides versioned artifact persistence for atelier.
//
// An artifact is a model-generated content object (document, code, or
// diagram) displayed in the workspace panel. Every edit appends a new
// immutable Version to the artifact's chain; versions are never rewritten
// in place. A revert copies an earlier version's content into a fresh
// version whose parent is the current latest, so the chain records that a
// revert happened rather than pretending history never moved.
//
// Invariants enforced by every Store implementation:
//   - version numbers for one artifact id form the dense sequence 1..N
//   - ParentVersionID, when set, references the immediately preceding version
//   - concurrent saves against the same artifact id never produce duplicate
//     version numbers
//
// Thread Safety: Store implementations must be safe for concurrent access.
package artifact
