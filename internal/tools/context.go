package tools

import "context"

// toolsetKey is an empty struct context key.
type toolsetKey struct{}

// ContextWithToolset stores the per-request toolset in ctx so registered
// Genkit tool handlers can reach their current bindings.
func ContextWithToolset(ctx context.Context, ts *Toolset) context.Context {
	return context.WithValue(ctx, toolsetKey{}, ts)
}

// ToolsetFromContext retrieves the toolset, or nil when none is bound.
func ToolsetFromContext(ctx context.Context) *Toolset {
	ts, _ := ctx.Value(toolsetKey{}).(*Toolset)
	return ts
}
