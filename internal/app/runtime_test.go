package app_test

import (
	"context"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ai/atelier/internal/agentcfg"
	"github.com/atelier-ai/atelier/internal/app"
	"github.com/atelier-ai/atelier/internal/artifact"
	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/orchestrator"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/stream"
	"github.com/atelier-ai/atelier/internal/testutil"
	"github.com/atelier-ai/atelier/internal/tools"
)

const testProvider = "mock"

type appFixture struct {
	mock      *testutil.MockLLM
	app       *app.App
	artifacts *artifact.MemoryStore
}

// newAppFixture assembles an App by hand on in-memory stores, bypassing
// Setup so no provider plugin or environment is needed.
func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	mock := testutil.NewMockLLM("fallback answer")
	g := testutil.NewGenkitWithMock(t, mock)
	logger := log.NewNop()

	backend := agentcfg.NewMemoryBackend()
	require.NoError(t, agentcfg.SeedDefaults(backend, testProvider, testutil.MockModelName))
	registry := agentcfg.NewRegistry(backend, logger)
	artifacts := artifact.NewMemoryStore()

	cfg := &config.Config{
		Provider:           testProvider,
		ModelName:          testutil.MockModelName,
		MaxSteps:           5,
		MaxHistoryMessages: 100,
		SinkCapacity:       256,
		TurnTimeoutSeconds: 30,
	}

	a := &app.App{
		Config:       cfg,
		Logger:       logger,
		Genkit:       g,
		Artifacts:    artifacts,
		Sessions:     session.NewMemoryStore(),
		AgentConfigs: registry,
		Tools:        tools.NewBuilder(g, registry, artifacts, "", nil, nil, logger),
		Orchestrator: orchestrator.New(g, logger),
	}
	return &appFixture{mock: mock, app: a, artifacts: artifacts}
}

// runTurn executes a turn with a concurrent sink consumer and returns the
// result along with every event the sink carried.
func (f *appFixture) runTurn(t *testing.T, req app.TurnRequest) (*app.TurnResult, []stream.Event, error) {
	t.Helper()
	sink := stream.NewSink(f.app.Config.SinkCapacity)

	collected := make(chan []stream.Event, 1)
	go func() {
		var events []stream.Event
		for ev := range sink.Events() {
			events = append(events, ev)
		}
		collected <- events
	}()

	result, err := f.app.RunTurn(context.Background(), req, sink)
	return result, <-collected, err
}

func TestRunTurn_PlainAnswer(t *testing.T) {
	t.Parallel()
	f := newAppFixture(t)
	f.mock.Queue("the capital of France is Paris")

	result, _, err := f.runTurn(t, app.TurnRequest{
		UserID: uuid.New(),
		Input:  "  What is the capital of France?  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "the capital of France is Paris", result.Turn.Text)
	assert.Equal(t, orchestrator.StopNatural, result.Turn.Stop)

	// A new chat was created, titled from the trimmed input.
	assert.NotEqual(t, uuid.Nil, result.Chat.ID)
	assert.Equal(t, "What is the capital of France?", result.Chat.Title)

	history, err := f.app.Sessions.History(context.Background(), result.Chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, session.RoleUser, history[0].Role)
	assert.Equal(t, "What is the capital of France?", history[0].Content)
	assert.Equal(t, session.RoleAssistant, history[1].Role)
}

func TestRunTurn_EmptyInput(t *testing.T) {
	t.Parallel()
	f := newAppFixture(t)

	_, _, err := f.runTurn(t, app.TurnRequest{UserID: uuid.New(), Input: "   "})
	assert.ErrorIs(t, err, app.ErrEmptyInput)
}

func TestRunTurn_UnknownChat(t *testing.T) {
	t.Parallel()
	f := newAppFixture(t)

	_, _, err := f.runTurn(t, app.TurnRequest{
		ChatID: uuid.New(),
		UserID: uuid.New(),
		Input:  "hello",
	})
	assert.ErrorIs(t, err, session.ErrChatNotFound)
}

func TestRunTurn_ToolCallCreatesArtifact(t *testing.T) {
	t.Parallel()
	f := newAppFixture(t)
	f.mock.QueueToolCalls("", &ai.ToolRequest{
		Name: string(agentcfg.AgentDocument),
		Ref:  "r1",
		Input: map[string]any{
			"operation":   "create",
			"instruction": "write a short poem about autumn",
		},
	})
	f.mock.Queue("I created the poem for you")

	result, events, err := f.runTurn(t, app.TurnRequest{
		UserID: uuid.New(),
		Input:  "write me a poem about autumn",
	})
	require.NoError(t, err)
	require.Len(t, result.Turn.ToolCalls, 1)
	created := result.Turn.ToolCalls[0].Result
	require.NotNil(t, created)

	id, err := uuid.Parse(created.ArtifactID)
	require.NoError(t, err)
	latest, err := f.artifacts.Latest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.VersionNumber)

	// The artifact content streamed through the sink as deltas, bracketed
	// by tool lifecycle events.
	var streamed strings.Builder
	var starts, ends int
	for _, ev := range events {
		switch {
		case ev.Type == stream.EventDelta && ev.Kind == string(agentcfg.AgentDocument):
			streamed.WriteString(ev.Payload)
		case ev.Type == stream.EventToolStart:
			starts++
		case ev.Type == stream.EventToolEnd:
			ends++
			assert.NotEmpty(t, ev.Payload)
		}
	}
	assert.Equal(t, latest.Content, streamed.String())
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
}

func TestRunTurn_ContinuesExistingChat(t *testing.T) {
	t.Parallel()
	f := newAppFixture(t)
	userID := uuid.New()

	f.mock.Queue("first answer")
	first, _, err := f.runTurn(t, app.TurnRequest{UserID: userID, Input: "first question"})
	require.NoError(t, err)

	f.mock.Queue("second answer")
	second, _, err := f.runTurn(t, app.TurnRequest{
		ChatID: first.Chat.ID,
		UserID: userID,
		Input:  "second question",
	})
	require.NoError(t, err)
	assert.Equal(t, first.Chat.ID, second.Chat.ID)

	history, err := f.app.Sessions.History(context.Background(), first.Chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "second answer", history[3].Content)

	// The second model call saw the first exchange as history.
	calls := f.mock.Calls()
	require.Len(t, calls, 2)
	assert.GreaterOrEqual(t, calls[1].MessageCount, 3)
}

func TestRunTurn_FailedTurnPersistsNothing(t *testing.T) {
	t.Parallel()
	f := newAppFixture(t)
	userID := uuid.New()

	f.mock.Queue("seed answer")
	first, _, err := f.runTurn(t, app.TurnRequest{UserID: userID, Input: "seed"})
	require.NoError(t, err)

	f.mock.QueueError(assert.AnError)
	_, _, err = f.runTurn(t, app.TurnRequest{
		ChatID: first.Chat.ID,
		UserID: userID,
		Input:  "this one fails",
	})
	require.Error(t, err)

	history, err := f.app.Sessions.History(context.Background(), first.Chat.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2, "the failed exchange must not be recorded")
}
