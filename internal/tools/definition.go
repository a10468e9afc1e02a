package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/atelier-ai/atelier/internal/agentcfg"
	"github.com/atelier-ai/atelier/internal/agents"
)

// ExecuteFunc runs one validated tool call against its bound agent.
type ExecuteFunc func(ctx context.Context, raw any) (*agents.Result, error)

// Definition is one callable tool: the model-facing name, description, and
// input schema, plus an execute closure bound to a per-request agent
// instance. Definitions are rebuilt for every request and never persisted.
type Definition struct {
	Name        string
	Description string
	AgentType   agentcfg.AgentType
	Schema      *jsonschema.Schema

	resolved *jsonschema.Resolved
	execute  ExecuteFunc
}

// Execute validates raw against the tool's schema and runs the bound agent.
// Validation failures return an error-status Result without touching any
// store; the error return is reserved for context cancellation.
func (d *Definition) Execute(ctx context.Context, raw any) (*agents.Result, error) {
	if err := d.validate(raw); err != nil {
		return &agents.Result{
			Status:  agents.StatusError,
			Summary: fmt.Sprintf("invalid input for tool %s: %v", d.Name, err),
		}, nil
	}
	return d.execute(ctx, raw)
}

func (d *Definition) validate(raw any) error {
	if d.resolved != nil {
		if err := d.resolved.Validate(raw); err != nil {
			return err
		}
	}
	return nil
}

// schemaFromParams assembles the model-facing input schema from configured
// parameter specs. Descriptions come from configuration so operators can
// steer how the model fills each field.
func schemaFromParams(params []agentcfg.ParameterSpec) (*jsonschema.Schema, *jsonschema.Resolved, error) {
	properties := make(map[string]*jsonschema.Schema, len(params))
	var required []string
	for _, p := range params {
		properties[p.Name] = &jsonschema.Schema{
			Type:        p.Type,
			Description: p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve tool schema: %w", err)
	}
	return schema, resolved, nil
}
