// Package session persists conversations: chats and their ordered
// messages. Two implementations exist, PostgresStore for production and
// MemoryStore for tests and database-less runs; both satisfy Store.
package session

import (
	"context"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// Message role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat is one conversation owned by a user.
type Chat struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single conversation message. Seq starts at 1 and is dense
// within a chat; the store assigns it on append.
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	Seq       int
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store is the persistence boundary for chats and messages.
type Store interface {
	// CreateChat creates a chat for the user. An empty title is allowed;
	// callers typically fill it in from the first user message.
	CreateChat(ctx context.Context, userID uuid.UUID, title string) (*Chat, error)

	// Chat returns a chat by id, or ErrChatNotFound.
	Chat(ctx context.Context, chatID uuid.UUID) (*Chat, error)

	// ListChats returns the user's chats ordered by most recently updated.
	ListChats(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Chat, error)

	// AppendMessages appends messages to a chat, assigning dense sequence
	// numbers. The batch is atomic: either every message lands or none.
	AppendMessages(ctx context.Context, chatID uuid.UUID, messages []*Message) error

	// History returns up to limit of the chat's most recent messages, in
	// ascending sequence order. limit <= 0 means no limit.
	History(ctx context.Context, chatID uuid.UUID, limit int) ([]*Message, error)

	// DeleteChat removes the chat and all its messages.
	DeleteChat(ctx context.Context, chatID uuid.UUID) error

	// DeleteMessagesAfter removes messages created strictly after t and
	// returns them in ascending sequence order. Used when rewinding a
	// conversation to an earlier point.
	DeleteMessagesAfter(ctx context.Context, chatID uuid.UUID, t time.Time) ([]*Message, error)
}

// ToModelMessages converts stored history into the model conversation
// format consumed by generation.
func ToModelMessages(history []*Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		role := ai.RoleUser
		if m.Role == RoleAssistant {
			role = ai.RoleModel
		}
		out = append(out, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(m.Content)},
		})
	}
	return out
}
