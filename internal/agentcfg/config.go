package agentcfg

import (
	"encoding/json"
	"fmt"
)

// AgentType identifies one kind of delegable agent.
type AgentType string

const (
	AgentDocument   AgentType = "document"
	AgentCode       AgentType = "code"
	AgentDiagram    AgentType = "diagram"
	AgentSearch     AgentType = "search"
	AgentRepoBrowse AgentType = "repobrowse"
)

// ArtifactAgents lists the agent types that write artifact versions.
var ArtifactAgents = []AgentType{AgentDocument, AgentCode, AgentDiagram}

// AllAgents lists every agent type the registry knows about.
var AllAgents = []AgentType{
	AgentDocument, AgentCode, AgentDiagram, AgentSearch, AgentRepoBrowse,
}

// RateLimit bounds how often one agent type may generate.
// A zero field means that window is unlimited.
type RateLimit struct {
	PerMinute int `json:"perMinute"`
	PerHour   int `json:"perHour"`
	PerDay    int `json:"perDay"`
}

// ParameterSpec declares one structured input field of an agent's tool.
// The description is model-facing: it becomes part of the generated JSON
// schema, so it must be present for every parameter.
type ParameterSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// AgentConfig is the resolved configuration for one (agent type, provider)
// pair. Instances handed out by the registry are copies; callers may mutate
// them freely without affecting the cache.
type AgentConfig struct {
	AgentType    AgentType       `json:"agentType"`
	Provider     string          `json:"provider"`
	Enabled      bool            `json:"enabled"`
	SystemPrompt string          `json:"systemPrompt"`
	ModelID      string          `json:"modelId"`
	APIKey       string          `json:"apiKey,omitempty"`
	RateLimit    RateLimit       `json:"rateLimit"`
	Parameters   []ParameterSpec `json:"parameters"`
}

// validParamTypes are the JSON schema primitive types a parameter may declare.
var validParamTypes = map[string]bool{
	"string":  true,
	"integer": true,
	"number":  true,
	"boolean": true,
}

// parseConfig decodes and validates raw backend JSON.
func parseConfig(agentType AgentType, provider string, data []byte) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config for %s/%s: %v",
			ErrInvalidConfig, agentType, provider, err)
	}
	cfg.AgentType = agentType
	cfg.Provider = provider

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks the fields a usable config must carry.
// Disabled configs are still validated: a disabled agent with a broken
// schema should surface as invalid if it is ever re-enabled.
func (c *AgentConfig) validate() error {
	if c.SystemPrompt == "" {
		return fmt.Errorf("%w: %s/%s: system prompt is required",
			ErrInvalidConfig, c.AgentType, c.Provider)
	}
	if c.ModelID == "" {
		return fmt.Errorf("%w: %s/%s: model id is required",
			ErrInvalidConfig, c.AgentType, c.Provider)
	}
	for i, p := range c.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: %s/%s: parameter %d has no name",
				ErrInvalidConfig, c.AgentType, c.Provider, i)
		}
		if p.Description == "" {
			return fmt.Errorf("%w: %s/%s: parameter %q has no description",
				ErrInvalidConfig, c.AgentType, c.Provider, p.Name)
		}
		if !validParamTypes[p.Type] {
			return fmt.Errorf("%w: %s/%s: parameter %q has invalid type %q",
				ErrInvalidConfig, c.AgentType, c.Provider, p.Name, p.Type)
		}
	}
	return nil
}

// clone returns a deep copy so cached configs never leak mutable state.
func (c *AgentConfig) clone() *AgentConfig {
	out := *c
	if c.Parameters != nil {
		out.Parameters = make([]ParameterSpec, len(c.Parameters))
		copy(out.Parameters, c.Parameters)
	}
	return &out
}
