// Package agentcfg loads, validates, and caches per-agent configuration.
//
// Each agent type (document, code, diagram, search, repobrowse) has one
// stored configuration per model provider, fetched from a Backend as raw
// JSON and validated here. The registry caches resolved configs in an
// immutable snapshot so concurrent reads never block on writes; per-request
// overrides (model id, credentials) layer on top of the stored config
// without touching the backend.
package agentcfg
