package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pdf-chat-server/internal/domain"
)

// PostgresChatRepository implements domain.ChatRepository
type PostgresChatRepository struct {
	db *sql.DB
}

// NewPostgresChatRepository creates a new chat repository
func NewPostgresChatRepository(db *sql.DB) *PostgresChatRepository {
	return &PostgresChatRepository{db: db}
}

func (r *PostgresChatRepository) CreateChat(ctx context.Context, chat *domain.Chat) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chats (id, user_id, document_id, title, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		chat.ID, chat.UserID, nullString(chat.DocumentID), chat.Title, chat.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (r *PostgresChatRepository) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrChatNotFound
	}
	var (
		c     domain.Chat
		docID sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, document_id, title, created_at FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &docID, &c.Title, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query chat: %w", err)
	}
	c.DocumentID = stringPtr(docID)
	return &c, nil
}

func (r *PostgresChatRepository) ListChats(ctx context.Context, userID string) ([]*domain.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, document_id, title, created_at FROM chats
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]*domain.Chat, 0)
	for rows.Next() {
		var (
			c     domain.Chat
			docID sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.UserID, &docID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		c.DocumentID = stringPtr(docID)
		chats = append(chats, &c)
	}
	return chats, rows.Err()
}

func (r *PostgresChatRepository) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, user_id, text, is_user, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ChatID, msg.UserID, msg.Text, msg.IsUser, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a chat's messages in conversation order.
func (r *PostgresChatRepository) ListMessages(ctx context.Context, chatID string) ([]*domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, user_id, text, is_user, created_at FROM messages
		WHERE chat_id = $1
		ORDER BY created_at, id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*domain.ChatMessage, 0)
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.UserID, &m.Text, &m.IsUser, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
