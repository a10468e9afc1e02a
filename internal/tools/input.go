package tools

import (
	"encoding/json"
	"fmt"

	"github.com/atelier-ai/atelier/internal/agents"
)

// ArtifactInput is the wire shape of an artifact tool call. The
// model-facing schema is built from configuration at request time; these
// tags only serve the registered fallback handler.
type ArtifactInput struct {
	Operation     string `json:"operation" jsonschema_description:"What to do: create, update, revert, fix, or explain"`
	Instruction   string `json:"instruction,omitempty" jsonschema_description:"Natural-language instruction for the agent"`
	ArtifactID    string `json:"artifactId,omitempty" jsonschema_description:"Artifact to operate on; required except for create"`
	TargetVersion int    `json:"targetVersion,omitempty" jsonschema_description:"Version to revert to; revert only"`
}

// SearchInput is the wire shape of a search tool call.
type SearchInput struct {
	Query      string `json:"query" jsonschema_description:"The search query to run"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema_description:"Maximum number of results to fetch and read"`
}

// BrowseInput is the wire shape of a repobrowse tool call.
type BrowseInput struct {
	URL string `json:"url" jsonschema_description:"URL of the public repository page or raw file to fetch"`
}

// decodeInput converts the untyped tool-call payload into T.
func decodeInput[T any](raw any) (T, error) {
	var out T
	data, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("encode tool input: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode tool input: %w", err)
	}
	return out, nil
}

// checkArtifactRules enforces the cross-field constraints the schema alone
// cannot express: which operations need an artifact id or a target version,
// and that create must not name one.
func checkArtifactRules(in ArtifactInput) error {
	op := agents.Operation(in.Operation)
	if !op.Valid() {
		return fmt.Errorf("unknown operation %q", in.Operation)
	}
	if op.RequiresArtifact() && in.ArtifactID == "" {
		return fmt.Errorf("operation %q requires artifactId", op)
	}
	if !op.RequiresArtifact() && in.ArtifactID != "" {
		return fmt.Errorf("operation %q must not carry artifactId", op)
	}
	if op == agents.OpRevert && in.TargetVersion < 1 {
		return fmt.Errorf("operation revert requires targetVersion >= 1")
	}
	if op != agents.OpRevert && in.TargetVersion != 0 {
		return fmt.Errorf("targetVersion is only valid for revert")
	}
	if op != agents.OpRevert && in.Instruction == "" {
		return fmt.Errorf("operation %q requires an instruction", op)
	}
	return nil
}
