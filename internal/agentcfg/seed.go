package agentcfg

// artifactParams is the shared tool input shape of the artifact agents.
var artifactParams = []ParameterSpec{
	{Name: "operation", Type: "string", Required: true,
		Description: "What to do: create, update, revert, or for code artifacts fix / explain."},
	{Name: "instruction", Type: "string", Required: true,
		Description: "Natural-language instruction describing the content to generate or the change to make."},
	{Name: "artifactId", Type: "string",
		Description: "ID of the artifact to operate on. Required for update, revert, fix, and explain; must be omitted for create."},
	{Name: "targetVersion", Type: "integer",
		Description: "Version number to revert to. Required for revert only."},
}

// DefaultConfigs returns a working config for every agent type, enabled and
// bound to modelID under provider. These back DB-less startup and tests.
func DefaultConfigs(provider, modelID string) []AgentConfig {
	defaults := []AgentConfig{
		{
			AgentType:    AgentDocument,
			SystemPrompt: "You are a writing assistant. Produce the complete document content requested, in Markdown, with no commentary around it.",
			Parameters:   artifactParams,
		},
		{
			AgentType:    AgentCode,
			SystemPrompt: "You are a Python programming assistant. Produce complete, runnable Python code for the request, with no prose outside code comments.",
			Parameters:   artifactParams,
		},
		{
			AgentType:    AgentDiagram,
			SystemPrompt: "You are a diagramming assistant. Produce a complete Mermaid diagram definition for the request, with no commentary around it.",
			Parameters:   artifactParams,
		},
		{
			AgentType:    AgentSearch,
			SystemPrompt: "You are a research assistant. Search the web for the query and summarize what the retrieved pages say, citing their URLs.",
			Parameters: []ParameterSpec{
				{Name: "query", Type: "string", Required: true,
					Description: "The search query to run."},
				{Name: "maxResults", Type: "integer",
					Description: "Maximum number of results to fetch and read. Defaults to 3."},
			},
		},
		{
			AgentType:    AgentRepoBrowse,
			SystemPrompt: "You are a code-reading assistant. Fetch the requested repository page or file and report its relevant contents.",
			Parameters: []ParameterSpec{
				{Name: "url", Type: "string", Required: true,
					Description: "URL of the public repository page or raw file to fetch."},
			},
		},
	}

	for i := range defaults {
		defaults[i].Provider = provider
		defaults[i].Enabled = true
		defaults[i].ModelID = modelID
		defaults[i].RateLimit = RateLimit{PerMinute: 10, PerHour: 100, PerDay: 500}
	}
	return defaults
}
