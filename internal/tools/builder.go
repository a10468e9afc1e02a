package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/internal/agentcfg"
	"github.com/atelier-ai/atelier/internal/agents"
	"github.com/atelier-ai/atelier/internal/artifact"
	"github.com/atelier-ai/atelier/internal/stream"
)

// toolDescriptions is the model-facing one-liner per agent type.
var toolDescriptions = map[agentcfg.AgentType]string{
	agentcfg.AgentDocument:   "Create, update, or revert a versioned text document. Streams the content to the user; returns only the artifact id and version.",
	agentcfg.AgentCode:       "Create, update, revert, fix, or explain a versioned Python code artifact. Streams the code to the user; returns only the artifact id and version.",
	agentcfg.AgentDiagram:    "Create, update, or revert a versioned Mermaid diagram. Streams the definition to the user; returns only the artifact id and version.",
	agentcfg.AgentSearch:     "Search the web and return a sourced summary of what the top results say.",
	agentcfg.AgentRepoBrowse: "Fetch a page or raw file from a public code repository and return its contents.",
}

var kindByAgent = map[agentcfg.AgentType]artifact.Kind{
	agentcfg.AgentDocument: artifact.KindDocument,
	agentcfg.AgentCode:     artifact.KindCode,
	agentcfg.AgentDiagram:  artifact.KindDiagram,
}

// Toolset is the per-request tool map handed to the orchestrator: lookup by
// name for execution, refs for the model call.
type Toolset struct {
	defs map[string]*Definition
	refs []ai.ToolRef
}

// Definition returns the named tool, or nil. Safe on a nil Toolset.
func (ts *Toolset) Definition(name string) *Definition {
	if ts == nil {
		return nil
	}
	return ts.defs[name]
}

// Refs returns the tool references passed to the model.
func (ts *Toolset) Refs() []ai.ToolRef {
	return ts.refs
}

// Names returns the names of all built tools.
func (ts *Toolset) Names() []string {
	names := make([]string, 0, len(ts.defs))
	for name := range ts.defs {
		names = append(names, name)
	}
	return names
}

// Len returns how many tools were built.
func (ts *Toolset) Len() int {
	return len(ts.defs)
}

// Builder constructs per-request toolsets from resolved agent configs.
type Builder struct {
	g        *genkit.Genkit
	registry *agentcfg.Registry
	store    artifact.Store
	searxURL string
	checker  agents.URLChecker
	client   *http.Client
	logger   *slog.Logger
}

// NewBuilder creates a Builder. checker and client may be nil; agents fall
// back to hardened defaults. A nil logger falls back to slog.Default().
func NewBuilder(
	g *genkit.Genkit,
	registry *agentcfg.Registry,
	store artifact.Store,
	searxURL string,
	checker agents.URLChecker,
	client *http.Client,
	logger *slog.Logger,
) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		g:        g,
		registry: registry,
		store:    store,
		searxURL: searxURL,
		checker:  checker,
		client:   client,
		logger:   logger,
	}
}

// Build resolves every known agent type under provider and returns the
// toolset of those that are enabled and valid.
//
// Disabled and invalid agents are skipped, never fatal: the model simply
// does not see those tools. Only an unreachable config backend aborts,
// since nothing meaningful can be built without it.
func (b *Builder) Build(ctx context.Context, provider string, sink *stream.Sink, chatID, userID uuid.UUID) (*Toolset, error) {
	ts := &Toolset{defs: make(map[string]*Definition)}

	for _, agentType := range agentcfg.AllAgents {
		cfg, err := b.registry.Load(ctx, agentType, provider)
		switch {
		case errors.Is(err, agentcfg.ErrAgentDisabled):
			b.logger.Debug("agent disabled, omitting tool", "agent", agentType)
			continue
		case errors.Is(err, agentcfg.ErrInvalidConfig):
			b.logger.Warn("agent config invalid, omitting tool", "agent", agentType, "error", err)
			continue
		case err != nil:
			return nil, fmt.Errorf("build toolset for provider %s: %w", provider, err)
		}

		def, err := b.buildDefinition(cfg, sink, chatID, userID)
		if err != nil {
			b.logger.Warn("agent tool could not be built, omitting",
				"agent", agentType, "error", err)
			continue
		}
		ts.defs[def.Name] = def
		ts.refs = append(ts.refs, b.toolRef(def))
	}

	b.logger.Debug("toolset built", "provider", provider, "tools", ts.Names())
	return ts, nil
}

func (b *Builder) buildDefinition(cfg *agentcfg.AgentConfig, sink *stream.Sink, chatID, userID uuid.UUID) (*Definition, error) {
	schema, resolved, err := schemaFromParams(cfg.Parameters)
	if err != nil {
		return nil, err
	}

	def := &Definition{
		Name:        string(cfg.AgentType),
		Description: toolDescriptions[cfg.AgentType],
		AgentType:   cfg.AgentType,
		Schema:      schema,
		resolved:    resolved,
	}

	switch cfg.AgentType {
	case agentcfg.AgentDocument, agentcfg.AgentCode, agentcfg.AgentDiagram:
		agent := agents.NewArtifactAgent(cfg, kindByAgent[cfg.AgentType],
			b.g, b.store, sink, chatID, userID, b.logger)
		def.execute = func(ctx context.Context, raw any) (*agents.Result, error) {
			in, err := decodeInput[ArtifactInput](raw)
			if err != nil {
				return invalidInput(def.Name, err), nil
			}
			if err := checkArtifactRules(in); err != nil {
				return invalidInput(def.Name, err), nil
			}
			return agent.Execute(ctx, agents.Request{
				Operation:     agents.Operation(in.Operation),
				Instruction:   in.Instruction,
				ArtifactID:    in.ArtifactID,
				TargetVersion: in.TargetVersion,
			})
		}

	case agentcfg.AgentSearch:
		agent := agents.NewSearchAgent(cfg, b.g, sink, b.searxURL, b.checker, b.client, b.logger)
		def.execute = func(ctx context.Context, raw any) (*agents.Result, error) {
			in, err := decodeInput[SearchInput](raw)
			if err != nil {
				return invalidInput(def.Name, err), nil
			}
			return agent.Execute(ctx, agents.SearchRequest{
				Query:      in.Query,
				MaxResults: in.MaxResults,
			})
		}

	case agentcfg.AgentRepoBrowse:
		agent := agents.NewRepoBrowseAgent(cfg, b.checker, b.client, b.logger)
		def.execute = func(ctx context.Context, raw any) (*agents.Result, error) {
			in, err := decodeInput[BrowseInput](raw)
			if err != nil {
				return invalidInput(def.Name, err), nil
			}
			return agent.Execute(ctx, agents.BrowseRequest{URL: in.URL})
		}

	default:
		return nil, fmt.Errorf("unknown agent type %q", cfg.AgentType)
	}

	return def, nil
}

func invalidInput(name string, err error) *agents.Result {
	return &agents.Result{
		Status:  agents.StatusError,
		Summary: fmt.Sprintf("invalid input for tool %s: %v", name, err),
	}
}

// toolRef returns the Genkit tool reference for def, registering it on
// first use. Registration is per-process; the handler resolves the current
// per-request binding through the context, so stale closures never leak
// across requests.
func (b *Builder) toolRef(def *Definition) ai.ToolRef {
	if tool := genkit.LookupTool(b.g, def.Name); tool != nil {
		return tool
	}

	switch def.AgentType {
	case agentcfg.AgentSearch:
		return genkit.DefineTool(b.g, def.Name, def.Description,
			func(tc *ai.ToolContext, in SearchInput) (*agents.Result, error) {
				return dispatch(tc.Context, def.Name, in)
			})
	case agentcfg.AgentRepoBrowse:
		return genkit.DefineTool(b.g, def.Name, def.Description,
			func(tc *ai.ToolContext, in BrowseInput) (*agents.Result, error) {
				return dispatch(tc.Context, def.Name, in)
			})
	default:
		return genkit.DefineTool(b.g, def.Name, def.Description,
			func(tc *ai.ToolContext, in ArtifactInput) (*agents.Result, error) {
				return dispatch(tc.Context, def.Name, in)
			})
	}
}

// dispatch routes a framework-executed tool call to the request's bound
// definition. The orchestrator executes tools itself, so this path only
// runs when some other flow lets the framework resolve tools directly.
func dispatch(ctx context.Context, name string, in any) (*agents.Result, error) {
	ts := ToolsetFromContext(ctx)
	if ts == nil {
		return nil, fmt.Errorf("tool %s called outside an orchestration context", name)
	}
	def := ts.Definition(name)
	if def == nil {
		return nil, fmt.Errorf("tool %s is not part of the current toolset", name)
	}
	return def.Execute(ctx, in)
}
