package chat

import (
	"context"

	"github.com/wuwenbin0122/finbot/internal/models"
)

// HistoryStore persists chats and their messages. Every call is scoped to the
// owning user; a chat of another user behaves as if it did not exist.
type HistoryStore interface {
	CreateChat(ctx context.Context, userID string) (string, error)
	AppendMessages(ctx context.Context, userID, chatID string, msgs []models.Message) error
	ListChats(ctx context.Context, userID string) ([]models.ChatRecord, error)
	LoadMessages(ctx context.Context, userID, chatID string) ([]models.Message, error)
	RenameChat(ctx context.Context, userID, chatID, title string) error
	DeleteChat(ctx context.Context, userID, chatID string) error
	DeleteAllChats(ctx context.Context, userID string) error
}

// Outcome reports a best-effort persistence call.
type Outcome struct {
	Op     string
	ChatID string
	Err    error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

func outcome(op, chatID string, err error) Outcome {
	return Outcome{Op: op, ChatID: chatID, Err: err}
}
