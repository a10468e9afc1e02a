package agents

import (
	"fmt"
)

// Operation selects what an artifact agent should do.
type Operation string

const (
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpRevert  Operation = "revert"
	OpFix     Operation = "fix"
	OpExplain Operation = "explain"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpRevert, OpFix, OpExplain:
		return true
	}
	return false
}

// RequiresArtifact reports whether op operates on an existing artifact.
func (op Operation) RequiresArtifact() bool {
	return op != OpCreate
}

// PastTense returns the verb used in result summaries ("updated", "fixed").
func (op Operation) PastTense() string {
	switch op {
	case OpFix:
		return "fixed"
	case OpExplain:
		return "explained"
	default:
		return string(op) + "d"
	}
}

// Request is the structured input of an artifact agent invocation, decoded
// from the model's tool call.
type Request struct {
	Operation     Operation `json:"operation"`
	Instruction   string    `json:"instruction"`
	ArtifactID    string    `json:"artifactId,omitempty"`
	TargetVersion int       `json:"targetVersion,omitempty"`
}

// Result is what a tool call returns to the model: a structured summary,
// never the full artifact content. Full content reaches the user through
// the output sink; the model only needs the id, version, and outcome.
type Result struct {
	Status        string `json:"status"`
	ArtifactID    string `json:"artifactId,omitempty"`
	VersionNumber int    `json:"versionNumber,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Summary       string `json:"summary"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

func okResult(artifactID string, version int, kind, summary string) *Result {
	return &Result{
		Status:        StatusOK,
		ArtifactID:    artifactID,
		VersionNumber: version,
		Kind:          kind,
		Summary:       summary,
	}
}

func errorResult(format string, args ...any) *Result {
	return &Result{
		Status:  StatusError,
		Summary: fmt.Sprintf(format, args...),
	}
}
