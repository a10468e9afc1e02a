// Package orchestrator runs the bounded multi-step generation loop at the
// top of every conversation turn.
//
// The loop is owned here, not by the model framework: each model call asks
// for tool requests back instead of letting the framework resolve them, so
// this package controls execution order, the step bound, and cancellation.
// Tool calls requested within one model turn run strictly in emission
// order, and their results re-enter the context in that same order before
// the next model call.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/atelier-ai/atelier/internal/agents"
	"github.com/atelier-ai/atelier/internal/stream"
	"github.com/atelier-ai/atelier/internal/tools"
)

// DefaultMaxSteps bounds tool-call round-trips when the caller does not.
const DefaultMaxSteps = 5

// Config parameterizes one run.
type Config struct {
	ModelName    string
	SystemPrompt string
	// MaxSteps bounds tool-call round-trips; <= 0 means DefaultMaxSteps.
	MaxSteps int
}

// Orchestrator drives conversation turns. One instance serves many
// concurrent runs; all per-run state lives on the stack of Run.
type Orchestrator struct {
	g      *genkit.Genkit
	logger *slog.Logger
}

// New creates an Orchestrator. A nil logger falls back to slog.Default().
func New(g *genkit.Genkit, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{g: g, logger: logger}
}

// Run executes one conversation turn: a generation loop that interleaves
// model calls and tool executions until the model stops calling tools or
// the step bound forces completion.
//
// An empty toolset degrades to plain chat. Exceeding the bound is not an
// error: the turn completes with best-effort output and a Stop reason the
// caller can inspect. Cancellation is honored at every suspension point;
// a deadline expiry surfaces as ErrTimeout.
func (o *Orchestrator) Run(ctx context.Context, conversation []*ai.Message, ts *tools.Toolset, sink *stream.Sink, cfg Config) (*AssistantTurn, error) {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	ctx = tools.ContextWithToolset(ctx, ts)
	messages := make([]*ai.Message, len(conversation))
	copy(messages, conversation)

	turn := &AssistantTurn{}
	withTools := ts != nil && ts.Len() > 0

	for {
		resp, err := o.generate(ctx, messages, ts, sink, cfg, withTools)
		if err != nil {
			return nil, err
		}

		if text := resp.Text(); text != "" {
			turn.Text = text
			turn.Fragments = append(turn.Fragments, text)
		}

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			if turn.Steps >= maxSteps {
				turn.Stop = StopStepBound
			} else {
				turn.Stop = StopNatural
			}
			return turn, nil
		}
		if turn.Steps >= maxSteps {
			// Requests the bound will not let us execute. This only
			// happens when the closing no-tools call still emitted tool
			// parts; drop them and surface the distinct stop reason.
			o.logger.Warn("dropping tool requests past step bound",
				"requests", len(requests), "max_steps", maxSteps)
			turn.Stop = StopStepBoundMidCall
			return turn, nil
		}

		messages = append(messages, resp.Message)
		responseParts, err := o.executeRequests(ctx, ts, sink, requests, turn)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &ai.Message{Role: ai.RoleTool, Content: responseParts})
		turn.Steps++

		// The bound is spent: one closing call without tools guarantees
		// the user a usable final turn instead of an abandoned loop.
		if turn.Steps >= maxSteps {
			withTools = false
		}
	}
}

func (o *Orchestrator) generate(ctx context.Context, messages []*ai.Message, ts *tools.Toolset, sink *stream.Sink, cfg Config, withTools bool) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(cfg.ModelName),
		ai.WithMessages(messages...),
		ai.WithReturnToolRequests(true),
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, ai.WithSystem(cfg.SystemPrompt))
	}
	if withTools {
		opts = append(opts, ai.WithTools(ts.Refs()...))
	}
	if sink != nil {
		opts = append(opts, ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			return sink.Delta(cbCtx, "", chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, o.g, opts...)
	if err != nil {
		return nil, o.runError(ctx, fmt.Errorf("model generation: %w", err))
	}
	return resp, nil
}

// executeRequests runs the model's tool calls strictly in emission order
// and returns their response parts in that same order.
func (o *Orchestrator) executeRequests(ctx context.Context, ts *tools.Toolset, sink *stream.Sink, requests []*ai.ToolRequest, turn *AssistantTurn) ([]*ai.Part, error) {
	parts := make([]*ai.Part, 0, len(requests))
	for _, req := range requests {
		var output any
		def := ts.Definition(req.Name)
		if def == nil {
			// The model hallucinated a tool it was never offered.
			o.logger.Warn("model requested unknown tool", "tool", req.Name)
			output = &agents.Result{
				Status:  agents.StatusError,
				Summary: fmt.Sprintf("tool %q does not exist", req.Name),
			}
		} else {
			if sink != nil {
				_ = sink.Send(ctx, stream.Event{Type: stream.EventToolStart, Kind: req.Name})
			}
			result, err := def.Execute(ctx, req.Input)
			if err != nil {
				return nil, o.runError(ctx, fmt.Errorf("tool %s: %w", req.Name, err))
			}
			if sink != nil {
				_ = sink.Send(ctx, stream.Event{
					Type:    stream.EventToolEnd,
					Kind:    req.Name,
					Payload: result.Summary,
				})
			}
			turn.ToolCalls = append(turn.ToolCalls, ToolExecution{
				Name:   req.Name,
				Input:  req.Input,
				Result: result,
			})
			o.logger.Debug("tool executed", "tool", req.Name, "status", result.Status)
			output = result
		}

		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: output,
		}))
	}
	return parts, nil
}

// runError maps deadline expiry onto ErrTimeout so callers can distinguish
// a timed-out run from a failed one.
func (o *Orchestrator) runError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
