package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wuwenbin0122/finbot/internal/chat"
	"github.com/wuwenbin0122/finbot/internal/db"
	"github.com/wuwenbin0122/finbot/internal/models"
)

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) manager(c *gin.Context) (*chat.Manager, bool) {
	if h.chats == nil {
		writeError(c, http.StatusServiceUnavailable, "chat unavailable", errNotConfigured)
		return nil, false
	}
	return h.chats.Manager(c.Request.Context(), identity(c)), true
}

// handleNewChat restarts the session with the latest saved profile.
func (h *Handler) handleNewChat(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if h.profiles != nil {
		if profile, err := h.profiles.GetProfile(ctx, identity(c).UserID); err == nil {
			m.SetProfile(*profile)
		}
	}

	if err := m.NewChat(ctx); err != nil && !errors.Is(err, chat.ErrSuperseded) {
		h.logger.Warnw("start new chat", "user_id", identity(c).UserID, "error", err)
		c.JSON(http.StatusBadGateway, m.Snapshot())
		return
	}

	c.JSON(http.StatusOK, m.Snapshot())
}

func (h *Handler) handleChatState(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m.Snapshot())
}

// handleSendMessage streams the reply as server-sent events: "message" with
// the full text so far, then "done" with the reply and follow-ups, or
// "error" when the reply failed.
func (h *Handler) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	m, ok := h.manager(c)
	if !ok {
		return
	}

	streaming := false
	reply, err := m.Send(c.Request.Context(), req.Text, func(msg models.Message) {
		if !streaming {
			streaming = true
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
		}
		c.SSEvent("message", msg)
		c.Writer.Flush()
	})

	switch {
	case err == nil && reply.Failed:
		c.SSEvent("error", reply)
	case err == nil:
		c.SSEvent("done", reply)
	case streaming:
		c.SSEvent("error", gin.H{"error": err.Error()})
	default:
		writeSendError(c, err)
		return
	}
	c.Writer.Flush()
}

func writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(c, http.StatusBadRequest, "message is empty", err)
	case errors.Is(err, chat.ErrBusy):
		writeError(c, http.StatusConflict, "a reply is still streaming", err)
	case errors.Is(err, chat.ErrNotReady):
		writeError(c, http.StatusConflict, "chat session is not ready", err)
	default:
		writeError(c, http.StatusInternalServerError, "failed to send message", err)
	}
}

func (h *Handler) handleListChats(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	chats, err := m.ListChats(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list chats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *Handler) handleOpenChat(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	if err := m.Select(c.Request.Context(), c.Param("id")); err != nil {
		writeHistoryError(c, "failed to open chat", err)
		return
	}

	c.JSON(http.StatusOK, m.Snapshot())
}

func (h *Handler) handleDeleteChat(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	if err := m.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeHistoryError(c, "failed to delete chat", err)
		return
	}

	c.JSON(http.StatusOK, m.Snapshot())
}

func (h *Handler) handleClearChats(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	if err := m.ClearAll(c.Request.Context()); err != nil {
		writeHistoryError(c, "failed to clear chats", err)
		return
	}

	c.JSON(http.StatusOK, m.Snapshot())
}

func writeHistoryError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, chat.ErrChatNotFound), errors.Is(err, db.ErrNotFound):
		writeError(c, http.StatusNotFound, "chat not found", err)
	case errors.Is(err, chat.ErrNoHistory):
		writeError(c, http.StatusServiceUnavailable, "chat history unavailable", err)
	case errors.Is(err, chat.ErrNotReady):
		writeError(c, http.StatusConflict, "chat session is not ready", err)
	case errors.Is(err, chat.ErrStartFailed):
		writeError(c, http.StatusBadGateway, chat.StartFailedText, err)
	default:
		writeError(c, http.StatusInternalServerError, message, err)
	}
}
