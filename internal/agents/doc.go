// Package agents implements the streaming sub-agents a conversation model
// can delegate to: artifact agents (document, code, diagram) that generate
// or edit versioned content, a web search agent, and a repository browsing
// agent.
//
// Artifact agents share one state machine (Idle, Generating, Streaming,
// Persisting, Done, Failed). They stream content deltas to the request's
// output sink while generating and persist the finished content as a new
// immutable version. Failures never propagate as Go errors to the model
// loop: they become error-status Results so the top-level model can react
// conversationally.
package agents
