package agentcfg

import "errors"

var (
	// ErrConfigFetch indicates the config backend could not be reached.
	// Recoverable: the caller may retry, or degrade by omitting the agent.
	ErrConfigFetch = errors.New("config fetch failed")

	// ErrInvalidConfig indicates a stored config is missing or malformed
	// (absent key, bad JSON, missing prompt/model, broken parameter spec).
	// Non-recoverable for that agent; the safe default is "tool unavailable".
	ErrInvalidConfig = errors.New("invalid agent configuration")

	// ErrAgentDisabled indicates the config exists and is valid but the
	// agent is switched off. Expected, not a failure: callers omit the tool.
	ErrAgentDisabled = errors.New("agent disabled")

	// ErrUnknownField indicates SetOverride was given a field name the
	// registry does not support.
	ErrUnknownField = errors.New("unknown override field")
)
