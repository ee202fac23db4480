package models

import "time"

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one entry of a conversation. Pending marks the bot reply that is
// still being streamed; clients render it as "typing" rather than as text.
type Message struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Sender  Sender `json:"sender"`
	Pending bool   `json:"pending,omitempty"`
}

// ChatRecord is a persisted conversation. Its messages are stored separately
// in insertion order.
type ChatRecord struct {
	ID            string     `json:"id"`
	UserID        string     `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	Title         string     `json:"title,omitempty"`
}

// ActiveAt is the time used to order chats: the last message, or creation when
// the chat was never messaged.
func (c ChatRecord) ActiveAt() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}
