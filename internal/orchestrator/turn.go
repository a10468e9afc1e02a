package orchestrator

import "github.com/atelier-ai/atelier/internal/agents"

// StopReason explains why the generation loop ended.
type StopReason string

const (
	// StopNatural: the model stopped requesting tools on its own.
	StopNatural StopReason = "natural"
	// StopStepBound: the step bound was reached; the final text comes from
	// a closing model call made without tools, so the turn is still usable.
	StopStepBound StopReason = "step_bound"
	// StopStepBoundMidCall: the model requested further tool calls that the
	// exhausted bound left unexecuted. The turn carries whatever text
	// exists; the pending requests were dropped.
	StopStepBoundMidCall StopReason = "step_bound_mid_call"
)

// ToolExecution records one executed tool call, in emission order.
type ToolExecution struct {
	Name   string
	Input  any
	Result *agents.Result
}

// AssistantTurn aggregates everything one orchestration run produced.
type AssistantTurn struct {
	// Text is the final assistant answer: the text of the last model
	// response that produced any.
	Text string
	// Fragments holds each loop iteration's text in order, for callers
	// that render intermediate commentary between tool calls.
	Fragments []string
	// ToolCalls lists executed tool calls in the order the model emitted
	// them.
	ToolCalls []ToolExecution
	// Steps is the number of tool-call round-trips executed.
	Steps int
	Stop  StopReason
}
