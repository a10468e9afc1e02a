package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists chats and messages in PostgreSQL.
// It is safe for concurrent use by multiple goroutines.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore. A nil logger falls back to
// slog.Default().
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) CreateChat(ctx context.Context, userID uuid.UUID, title string) (*Chat, error) {
	const query = `
		INSERT INTO chats (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, created_at, updated_at`

	chat, err := scanChat(s.pool.QueryRow(ctx, query, pgUUID(userID), title))
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}

	s.logger.Debug("created chat", "chat_id", chat.ID, "user_id", userID)
	return chat, nil
}

func (s *PostgresStore) Chat(ctx context.Context, chatID uuid.UUID) (*Chat, error) {
	const query = `
		SELECT id, user_id, title, created_at, updated_at
		FROM chats
		WHERE id = $1`

	chat, err := scanChat(s.pool.QueryRow(ctx, query, pgUUID(chatID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("getting chat %s: %w", chatID, err)
	}
	return chat, nil
}

func (s *PostgresStore) ListChats(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Chat, error) {
	const query = `
		SELECT id, user_id, title, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, pgUUID(userID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return chats, nil
}

// AppendMessages assigns dense sequence numbers under a row lock on the
// chat, so concurrent appenders cannot collide on seq.
func (s *PostgresStore) AppendMessages(ctx context.Context, chatID uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	var locked pgtype.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM chats WHERE id = $1 FOR UPDATE`, pgUUID(chatID)).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrChatNotFound
		}
		return fmt.Errorf("locking chat %s: %w", chatID, err)
	}

	var maxSeq int
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM messages WHERE chat_id = $1`, pgUUID(chatID)).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("reading max sequence: %w", err)
	}

	const insert = `
		INSERT INTO messages (chat_id, seq, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	for i, msg := range messages {
		msg.ChatID = chatID
		msg.Seq = maxSeq + i + 1

		var (
			id        pgtype.UUID
			createdAt pgtype.Timestamptz
		)
		if err := tx.QueryRow(ctx, insert, pgUUID(chatID), msg.Seq, msg.Role, msg.Content).Scan(&id, &createdAt); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
		msg.ID = uuid.UUID(id.Bytes)
		msg.CreatedAt = createdAt.Time
	}

	if _, err := tx.Exec(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, pgUUID(chatID)); err != nil {
		return fmt.Errorf("touching chat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("appended messages", "chat_id", chatID, "count", len(messages))
	return nil
}

func (s *PostgresStore) History(ctx context.Context, chatID uuid.UUID, limit int) ([]*Message, error) {
	// The inner query takes the most recent messages; the outer one
	// restores ascending order for the conversation.
	query := `
		SELECT id, chat_id, seq, role, content, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY seq ASC`
	args := []any{pgUUID(chatID)}
	if limit > 0 {
		query = `
			SELECT id, chat_id, seq, role, content, created_at
			FROM (
				SELECT id, chat_id, seq, role, content, created_at
				FROM messages
				WHERE chat_id = $1
				ORDER BY seq DESC
				LIMIT $2
			) recent
			ORDER BY seq ASC`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var history []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		history = append(history, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return history, nil
}

func (s *PostgresStore) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, pgUUID(chatID))
	if err != nil {
		return fmt.Errorf("deleting chat %s: %w", chatID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}
	s.logger.Debug("deleted chat", "chat_id", chatID)
	return nil
}

func (s *PostgresStore) DeleteMessagesAfter(ctx context.Context, chatID uuid.UUID, t time.Time) ([]*Message, error) {
	const query = `
		DELETE FROM messages
		WHERE chat_id = $1 AND created_at > $2
		RETURNING id, chat_id, seq, role, content, created_at`

	rows, err := s.pool.Query(ctx, query, pgUUID(chatID), t)
	if err != nil {
		return nil, fmt.Errorf("deleting messages after %s: %w", t, err)
	}
	defer rows.Close()

	var deleted []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deleted message: %w", err)
		}
		deleted = append(deleted, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deleting messages after %s: %w", t, err)
	}

	sortMessagesBySeq(deleted)
	if len(deleted) > 0 {
		s.logger.Debug("deleted messages", "chat_id", chatID, "count", len(deleted))
	}
	return deleted, nil
}

func scanChat(row pgx.Row) (*Chat, error) {
	var (
		id, userID           pgtype.UUID
		title                string
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &userID, &title, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &Chat{
		ID:        uuid.UUID(id.Bytes),
		UserID:    uuid.UUID(userID.Bytes),
		Title:     title,
		CreatedAt: createdAt.Time,
		UpdatedAt: updatedAt.Time,
	}, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var (
		id, chatID pgtype.UUID
		seq        int
		role       string
		content    string
		createdAt  pgtype.Timestamptz
	)
	if err := row.Scan(&id, &chatID, &seq, &role, &content, &createdAt); err != nil {
		return nil, err
	}
	return &Message{
		ID:        uuid.UUID(id.Bytes),
		ChatID:    uuid.UUID(chatID.Bytes),
		Seq:       seq,
		Role:      role,
		Content:   content,
		CreatedAt: createdAt.Time,
	}, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
