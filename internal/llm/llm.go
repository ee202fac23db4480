// Package llm opens conversational sessions with a generative model and
// streams its replies as text chunks.
package llm

import (
	"context"
	"errors"
	"iter"

	"github.com/wuwenbin0122/finbot/internal/models"
)

var (
	ErrMissingAPIKey = errors.New("llm: api key missing")
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Params are the sampling parameters a session is opened with.
type Params struct {
	Model       string
	Temperature float32
	TopP        float32
	TopK        float32
}

// DefaultParams matches the assistant's production tuning.
func DefaultParams() Params {
	return Params{Model: "gemini-2.5-flash", Temperature: 0.7, TopP: 0.9, TopK: 40}
}

// Spec describes the session to open: the system instruction and the persona
// it was built for.
type Spec struct {
	Instructions string
	Persona      models.Persona
}

// Backend opens sessions seeded with a system instruction.
type Backend interface {
	StartSession(ctx context.Context, spec Spec) (Session, error)
}

// Session is one live conversation. SendStream returns a lazy, finite
// sequence of reply chunks; it is consumed once and stops at the first error.
type Session interface {
	SendStream(ctx context.Context, text string) iter.Seq2[string, error]
}
