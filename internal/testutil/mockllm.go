package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModelName is the model name mock instances register under.
const MockModelName = "mock/test-model"

// streamChunkSize is how many runes each streamed chunk carries; small
// enough that short responses still produce several delta events.
const streamChunkSize = 16

// MockLLM is a deterministic stand-in for a model provider.
//
// Responses come from two sources, checked in order:
//   - a script: turns queued with Queue/QueueToolCalls/QueueError, consumed
//     one per generate call. Multi-step loop tests use this, since the same
//     user message must yield different turns as the loop advances;
//   - pattern rules: substring matches against the last user message,
//     first match wins.
//
// When neither applies, the fallback text is returned.
// Thread-safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	script   []mockTurn
	rules    []mockRule
	fallback string
	calls    []MockCall
}

type mockTurn struct {
	text  string
	tools []*ai.ToolRequest
	err   error
}

type mockRule struct {
	pattern string
	turn    mockTurn
}

// MockCall records one generate invocation.
type MockCall struct {
	UserMessage string
	Response    string
	// MessageCount is how many messages the request carried, useful for
	// asserting that history made it into the call.
	MessageCount int
}

// NewMockLLM creates a mock with the given fallback response.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// Queue appends a plain-text turn to the script.
func (m *MockLLM) Queue(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockTurn{text: text})
}

// QueueToolCalls appends a turn that requests the given tool calls.
func (m *MockLLM) QueueToolCalls(text string, tools ...*ai.ToolRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockTurn{text: text, tools: tools})
}

// QueueError appends a turn that fails with err.
func (m *MockLLM) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockTurn{err: err})
}

// AddResponse registers a pattern rule returning text.
// Patterns match case-insensitively against the last user message.
func (m *MockLLM) AddResponse(pattern, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern: strings.ToLower(pattern),
		turn:    mockTurn{text: text},
	})
}

// AddErrorResponse registers a pattern rule that fails with err.
func (m *MockLLM) AddErrorResponse(pattern string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern: strings.ToLower(pattern),
		turn:    mockTurn{err: err},
	})
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// CallCount returns how many generate calls the mock has served.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Register defines the mock as a Genkit model and returns its reference.
func (m *MockLLM) Register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			userText = req.Messages[i].Text()
			break
		}
	}

	turn := m.nextTurn(userText, len(req.Messages))
	if turn.err != nil {
		return nil, turn.err
	}

	if cb != nil {
		for _, chunk := range chunkText(turn.text) {
			if err := cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(chunk)},
			}); err != nil {
				return nil, err
			}
		}
	}

	var parts []*ai.Part
	for _, tr := range turn.tools {
		parts = append(parts, &ai.Part{Kind: ai.PartToolRequest, ToolRequest: tr})
	}
	if turn.text != "" || len(parts) == 0 {
		parts = append(parts, ai.NewTextPart(turn.text))
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{Role: ai.RoleModel, Content: parts},
	}, nil
}

func (m *MockLLM) nextTurn(userText string, messageCount int) mockTurn {
	m.mu.Lock()
	defer m.mu.Unlock()

	var turn mockTurn
	switch {
	case len(m.script) > 0:
		turn = m.script[0]
		m.script = m.script[1:]
	default:
		turn = mockTurn{text: m.fallback}
		lower := strings.ToLower(userText)
		for i := range m.rules {
			if strings.Contains(lower, m.rules[i].pattern) {
				turn = m.rules[i].turn
				break
			}
		}
	}

	m.calls = append(m.calls, MockCall{
		UserMessage:  userText,
		Response:     turn.text,
		MessageCount: messageCount,
	})
	return turn
}

// chunkText splits text into rune-safe chunks whose concatenation equals
// the input exactly.
func chunkText(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > 0 {
		n := streamChunkSize
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
