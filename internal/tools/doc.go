// Package tools turns resolved agent configurations into the callable tool
// set offered to the top-level model.
//
// Gating is structural: an agent whose config is disabled or invalid simply
// never appears in the built toolset, so the model cannot call it. There are
// no runtime permission checks. Each built tool validates its input against
// a schema assembled from the config's parameter specs before the bound
// agent runs, so malformed calls fail before any store access.
package tools
