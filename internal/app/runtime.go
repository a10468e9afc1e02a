package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/internal/orchestrator"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/stream"
)

// ErrEmptyInput indicates a turn was requested with no user input.
var ErrEmptyInput = errors.New("empty input")

// chatSystemPrompt frames the top-level assistant. Specialist behavior
// lives in the per-agent configs, not here.
const chatSystemPrompt = `You are a helpful assistant with access to specialist tools for
creating and editing documents, code, and diagrams, searching the web, and
reading repository pages. Use a tool when the user asks for an artifact or
for information you do not have; answer directly otherwise. After a tool
runs you receive a short structured summary, not the full content - the
user already sees the content as it streams.`

// titleLimit caps chat titles derived from the first user message.
const titleLimit = 80

// TurnRequest describes one user turn.
type TurnRequest struct {
	// ChatID selects an existing chat; uuid.Nil starts a new one.
	ChatID uuid.UUID
	UserID uuid.UUID
	Input  string
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	Chat *session.Chat
	Turn *orchestrator.AssistantTurn
}

// RunTurn executes one conversation turn end to end: it resolves the chat,
// loads history, builds the toolset gated by current agent configs, runs
// the orchestration loop, and persists the exchange.
//
// The sink receives streaming events during the run and is closed before
// RunTurn returns, so a consumer ranging over sink.Events() terminates.
// On error nothing is persisted; the chat history stays as it was.
func (a *App) RunTurn(ctx context.Context, req TurnRequest, sink *stream.Sink) (*TurnResult, error) {
	defer sink.Close()

	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	chat, err := a.resolveChat(ctx, req)
	if err != nil {
		return nil, err
	}

	history, err := a.Sessions.History(ctx, chat.ID, a.Config.MaxHistoryMessages)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	conversation := session.ToModelMessages(history)
	conversation = append(conversation, &ai.Message{
		Role:    ai.RoleUser,
		Content: []*ai.Part{ai.NewTextPart(input)},
	})

	ts, err := a.Tools.Build(ctx, a.Config.Provider, sink, chat.ID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("building toolset: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(a.Config.TurnTimeoutSeconds)*time.Second)
	defer cancel()

	turn, err := a.Orchestrator.Run(runCtx, conversation, ts, sink, orchestrator.Config{
		ModelName:    a.Config.FullModelName(),
		SystemPrompt: chatSystemPrompt,
		MaxSteps:     a.Config.MaxSteps,
	})
	if err != nil {
		return nil, err
	}

	exchange := []*session.Message{
		{Role: session.RoleUser, Content: input},
		{Role: session.RoleAssistant, Content: turn.Text},
	}
	if err := a.Sessions.AppendMessages(ctx, chat.ID, exchange); err != nil {
		return nil, fmt.Errorf("persisting exchange: %w", err)
	}

	return &TurnResult{Chat: chat, Turn: turn}, nil
}

func (a *App) resolveChat(ctx context.Context, req TurnRequest) (*session.Chat, error) {
	if req.ChatID != uuid.Nil {
		chat, err := a.Sessions.Chat(ctx, req.ChatID)
		if err != nil {
			return nil, fmt.Errorf("resolving chat %s: %w", req.ChatID, err)
		}
		return chat, nil
	}

	chat, err := a.Sessions.CreateChat(ctx, req.UserID, deriveTitle(req.Input))
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	return chat, nil
}

// deriveTitle builds a chat title from the first user message.
func deriveTitle(input string) string {
	title := strings.Join(strings.Fields(input), " ")
	if runes := []rune(title); len(runes) > titleLimit {
		title = string(runes[:titleLimit-3]) + "..."
	}
	return title
}
