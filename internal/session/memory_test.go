package session

import (
	"context"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndGetChat(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	chat, err := store.CreateChat(ctx, userID, "first chat")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, chat.ID)
	assert.Equal(t, userID, chat.UserID)

	got, err := store.Chat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, got.ID)
	assert.Equal(t, "first chat", got.Title)
}

func TestMemoryStore_ChatNotFound(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()

	_, err := store.Chat(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrChatNotFound)

	err = store.DeleteChat(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrChatNotFound)

	err = store.AppendMessages(context.Background(), uuid.New(), []*Message{
		{Role: RoleUser, Content: "hello"},
	})
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestMemoryStore_AppendAssignsDenseSequence(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	chat, err := store.CreateChat(ctx, uuid.New(), "")
	require.NoError(t, err)

	first := []*Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
	}
	require.NoError(t, store.AppendMessages(ctx, chat.ID, first))
	assert.Equal(t, 1, first[0].Seq)
	assert.Equal(t, 2, first[1].Seq)

	second := []*Message{{Role: RoleUser, Content: "and again"}}
	require.NoError(t, store.AppendMessages(ctx, chat.ID, second))
	assert.Equal(t, 3, second[0].Seq)

	history, err := store.History(ctx, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, msg := range history {
		assert.Equal(t, i+1, msg.Seq)
	}
}

func TestMemoryStore_HistoryLimitKeepsMostRecent(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	chat, err := store.CreateChat(ctx, uuid.New(), "")
	require.NoError(t, err)

	var batch []*Message
	for i := 0; i < 5; i++ {
		batch = append(batch, &Message{Role: RoleUser, Content: "msg"})
	}
	require.NoError(t, store.AppendMessages(ctx, chat.ID, batch))

	history, err := store.History(ctx, chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[0].Seq)
	assert.Equal(t, 5, history[1].Seq)
}

func TestMemoryStore_ListChatsOrdersByRecency(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	older, err := store.CreateChat(ctx, userID, "older")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	newer, err := store.CreateChat(ctx, userID, "newer")
	require.NoError(t, err)

	// Appending bumps updated_at, moving the older chat back to the top.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.AppendMessages(ctx, older.ID, []*Message{
		{Role: RoleUser, Content: "revive"},
	}))

	chats, err := store.ListChats(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, older.ID, chats[0].ID)
	assert.Equal(t, newer.ID, chats[1].ID)

	// Other users see nothing.
	none, err := store.ListChats(ctx, uuid.New(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_DeleteChatRemovesMessages(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	chat, err := store.CreateChat(ctx, uuid.New(), "")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessages(ctx, chat.ID, []*Message{
		{Role: RoleUser, Content: "hello"},
	}))

	require.NoError(t, store.DeleteChat(ctx, chat.ID))

	history, err := store.History(ctx, chat.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryStore_DeleteMessagesAfter(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	chat, err := store.CreateChat(ctx, uuid.New(), "")
	require.NoError(t, err)

	require.NoError(t, store.AppendMessages(ctx, chat.ID, []*Message{
		{Role: RoleUser, Content: "kept"},
	}))
	cutoff := time.Now()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.AppendMessages(ctx, chat.ID, []*Message{
		{Role: RoleAssistant, Content: "dropped one"},
		{Role: RoleUser, Content: "dropped two"},
	}))

	deleted, err := store.DeleteMessagesAfter(ctx, chat.ID, cutoff)
	require.NoError(t, err)
	require.Len(t, deleted, 2)
	assert.Equal(t, "dropped one", deleted[0].Content)
	assert.Equal(t, "dropped two", deleted[1].Content)

	history, err := store.History(ctx, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "kept", history[0].Content)
}

func TestToModelMessages(t *testing.T) {
	t.Parallel()
	history := []*Message{
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, Content: "answer"},
	}

	msgs := ToModelMessages(history)
	require.Len(t, msgs, 2)
	assert.Equal(t, ai.RoleUser, msgs[0].Role)
	assert.Equal(t, "question", msgs[0].Content[0].Text)
	assert.Equal(t, ai.RoleModel, msgs[1].Role)
	assert.Equal(t, "answer", msgs[1].Content[0].Text)
}
