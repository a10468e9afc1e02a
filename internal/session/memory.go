package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and database-less runs.
// It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	chats    map[uuid.UUID]*Chat
	messages map[uuid.UUID][]*Message
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[uuid.UUID]*Chat),
		messages: make(map[uuid.UUID][]*Message),
	}
}

func (s *MemoryStore) CreateChat(_ context.Context, userID uuid.UUID, title string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	chat := &Chat{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.chats[chat.ID] = chat
	return copyChat(chat), nil
}

func (s *MemoryStore) Chat(_ context.Context, chatID uuid.UUID) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return copyChat(chat), nil
}

func (s *MemoryStore) ListChats(_ context.Context, userID uuid.UUID, limit, offset int) ([]*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chats []*Chat
	for _, chat := range s.chats {
		if chat.UserID == userID {
			chats = append(chats, copyChat(chat))
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})

	if offset >= len(chats) {
		return nil, nil
	}
	chats = chats[offset:]
	if limit > 0 && limit < len(chats) {
		chats = chats[:limit]
	}
	return chats, nil
}

func (s *MemoryStore) AppendMessages(_ context.Context, chatID uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}

	existing := s.messages[chatID]
	maxSeq := 0
	if n := len(existing); n > 0 {
		maxSeq = existing[n-1].Seq
	}

	now := time.Now()
	for i, msg := range messages {
		msg.ID = uuid.New()
		msg.ChatID = chatID
		msg.Seq = maxSeq + i + 1
		msg.CreatedAt = now
		s.messages[chatID] = append(s.messages[chatID], copyMessage(msg))
	}
	chat.UpdatedAt = now
	return nil
}

func (s *MemoryStore) History(_ context.Context, chatID uuid.UUID, limit int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.messages[chatID]
	if limit > 0 && limit < len(stored) {
		stored = stored[len(stored)-limit:]
	}

	history := make([]*Message, 0, len(stored))
	for _, msg := range stored {
		history = append(history, copyMessage(msg))
	}
	return history, nil
}

func (s *MemoryStore) DeleteChat(_ context.Context, chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return ErrChatNotFound
	}
	delete(s.chats, chatID)
	delete(s.messages, chatID)
	return nil
}

func (s *MemoryStore) DeleteMessagesAfter(_ context.Context, chatID uuid.UUID, t time.Time) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept, deleted []*Message
	for _, msg := range s.messages[chatID] {
		if msg.CreatedAt.After(t) {
			deleted = append(deleted, copyMessage(msg))
		} else {
			kept = append(kept, msg)
		}
	}
	s.messages[chatID] = kept

	sortMessagesBySeq(deleted)
	return deleted, nil
}

func sortMessagesBySeq(messages []*Message) {
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Seq < messages[j].Seq
	})
}

func copyChat(c *Chat) *Chat {
	cp := *c
	return &cp
}

func copyMessage(m *Message) *Message {
	cp := *m
	return &cp
}
