// Package chat owns the lifecycle of a conversation with the model: opening a
// session seeded with the user's persona and finances, streaming replies into
// a transcript, persisting finished exchanges and suggesting follow-ups.
package chat

import "errors"

var (
	ErrEmptyMessage = errors.New("chat: message is empty")
	ErrBusy         = errors.New("chat: a reply is still streaming")
	ErrNotReady     = errors.New("chat: session is not ready")
	ErrStartFailed  = errors.New("chat: failed to start session")
	ErrChatNotFound = errors.New("chat: chat not found")
	ErrNoHistory    = errors.New("chat: history is unavailable")
	ErrSuperseded   = errors.New("chat: session was replaced")
)

// Texts shown to the user in place of a reply or transcript.
const (
	StartFailedText  = "Failed to start chat. Please try again."
	ReplyFailedText  = "Sorry, I encountered an error. Please try again."
	APIKeyFailedText = "API key missing or invalid. Please check your configuration."
)

// State is the lifecycle stage of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateSending
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
