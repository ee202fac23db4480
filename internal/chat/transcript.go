package chat

import (
	"strings"

	"github.com/wuwenbin0122/finbot/internal/models"
)

// handle addresses one transcript entry. A pending handle is the reply being
// streamed: chunks are appended to its buffer and every snapshot carries the
// full text so far. Once finalized the text no longer changes.
type handle struct {
	id      string
	sender  models.Sender
	buf     strings.Builder
	pending bool
}

func finished(msg models.Message) *handle {
	h := &handle{id: msg.ID, sender: msg.Sender}
	h.buf.WriteString(msg.Text)
	return h
}

func placeholder(id string) *handle {
	return &handle{id: id, sender: models.SenderBot, pending: true}
}

func (h *handle) write(chunk string) {
	if h.pending {
		h.buf.WriteString(chunk)
	}
}

// replace discards the streamed text, used when a reply fails mid-stream.
func (h *handle) replace(text string) {
	h.buf.Reset()
	h.buf.WriteString(text)
}

func (h *handle) finalize() {
	h.pending = false
}

func (h *handle) empty() bool {
	return strings.TrimSpace(h.buf.String()) == ""
}

func (h *handle) snapshot() models.Message {
	return models.Message{
		ID:      h.id,
		Text:    h.buf.String(),
		Sender:  h.sender,
		Pending: h.pending,
	}
}

type transcript struct {
	entries []*handle
}

func (t *transcript) push(h ...*handle) {
	t.entries = append(t.entries, h...)
}

func (t *transcript) reset(msgs []models.Message) {
	t.entries = make([]*handle, 0, len(msgs))
	for _, m := range msgs {
		t.entries = append(t.entries, finished(m))
	}
}

func (t *transcript) messages() []models.Message {
	out := make([]models.Message, 0, len(t.entries))
	for _, h := range t.entries {
		out = append(out, h.snapshot())
	}
	return out
}
