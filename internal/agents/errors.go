package agents

import "errors"

var (
	// ErrGeneration indicates the model call failed. Surfaced to the
	// conversation as an error Result, never as a crash.
	ErrGeneration = errors.New("generation failed")

	// ErrPersistence indicates the version write failed after a retry.
	// Kept distinct from ErrGeneration: the user may already have seen the
	// streamed content, so the failure message must say the save is what
	// went wrong.
	ErrPersistence = errors.New("persistence failed")

	// ErrRateLimited indicates the agent's configured rate limit refused
	// the operation before any model call was made.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnsupportedOperation indicates an operation this agent kind does
	// not implement (fix and explain are code-only).
	ErrUnsupportedOperation = errors.New("unsupported operation")
)
