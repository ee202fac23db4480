package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wuwenbin0122/finbot/internal/models"
)

func (p *Postgres) CreateChat(ctx context.Context, userID string) (string, error) {
	id := uuid.NewString()
	if _, err := p.Pool.Exec(ctx, "INSERT INTO chats (id, user_id) VALUES ($1, $2)", id, userID); err != nil {
		return "", fmt.Errorf("postgres: create chat: %w", err)
	}
	return id, nil
}

// AppendMessages stores msgs in order and marks the chat active, in one
// transaction.
func (p *Postgres) AppendMessages(ctx context.Context, userID, chatID string, msgs []models.Message) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "UPDATE chats SET last_message_at = NOW() WHERE id = $1 AND user_id = $2", chatID, userID)
	if err != nil {
		return fmt.Errorf("postgres: touch chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(
			"INSERT INTO chat_messages (chat_id, message_id, sender, text) VALUES ($1, $2, $3, $4)",
			chatID, m.ID, string(m.Sender), m.Text,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert messages: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit append: %w", err)
	}
	return nil
}

func (p *Postgres) ListChats(ctx context.Context, userID string) ([]models.ChatRecord, error) {
	rows, err := p.Pool.Query(ctx, `
SELECT id, user_id, title, created_at, last_message_at
FROM chats
WHERE user_id = $1
ORDER BY last_message_at DESC NULLS LAST, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list chats: %w", err)
	}
	defer rows.Close()

	chats := []models.ChatRecord{}
	for rows.Next() {
		var (
			c    models.ChatRecord
			last *time.Time
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &last); err != nil {
			return nil, fmt.Errorf("postgres: scan chat: %w", err)
		}
		c.LastMessageAt = last
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (p *Postgres) LoadMessages(ctx context.Context, userID, chatID string) ([]models.Message, error) {
	var owned bool
	if err := p.Pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1 AND user_id = $2)", chatID, userID).Scan(&owned); err != nil {
		return nil, fmt.Errorf("postgres: find chat: %w", err)
	}
	if !owned {
		return nil, ErrNotFound
	}

	rows, err := p.Pool.Query(ctx, "SELECT message_id, sender, text FROM chat_messages WHERE chat_id = $1 ORDER BY seq", chatID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load messages: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Message, error) {
		var (
			m      models.Message
			sender string
		)
		err := row.Scan(&m.ID, &sender, &m.Text)
		m.Sender = models.Sender(sender)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan messages: %w", err)
	}
	return msgs, nil
}

func (p *Postgres) RenameChat(ctx context.Context, userID, chatID, title string) error {
	tag, err := p.Pool.Exec(ctx, "UPDATE chats SET title = $3 WHERE id = $1 AND user_id = $2", chatID, userID, title)
	if err != nil {
		return fmt.Errorf("postgres: rename chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteChat(ctx context.Context, userID, chatID string) error {
	tag, err := p.Pool.Exec(ctx, "DELETE FROM chats WHERE id = $1 AND user_id = $2", chatID, userID)
	if err != nil {
		return fmt.Errorf("postgres: delete chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteAllChats(ctx context.Context, userID string) error {
	if _, err := p.Pool.Exec(ctx, "DELETE FROM chats WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("postgres: delete chats: %w", err)
	}
	return nil
}
