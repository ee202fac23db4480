package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wuwenbin0122/finbot/internal/chat"
	"github.com/wuwenbin0122/finbot/internal/models"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type chatClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// handleChatWebsocket serves the chat over a websocket. Clients send
// {"type":"send","text":...} or {"type":"new"}; the server answers with
// "state", "message", "done" and "error" frames. Messages are handled in
// arrival order, one reply at a time.
func (h *Handler) handleChatWebsocket(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	conn, err := chatUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("chat websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	userID := identity(c).UserID

	sendError := func(message string, detail error) {
		frame := gin.H{"type": "error", "error": message}
		if detail != nil {
			frame["detail"] = detail.Error()
		}
		_ = conn.WriteJSON(frame)
	}

	if err := conn.WriteJSON(gin.H{"type": "state", "state": m.Snapshot()}); err != nil {
		return
	}

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warnf("chat websocket closed: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg chatClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			sendError("invalid message", err)
			continue
		}

		switch strings.ToLower(strings.TrimSpace(msg.Type)) {
		case "send":
			reply, err := m.Send(ctx, msg.Text, func(update models.Message) {
				_ = conn.WriteJSON(gin.H{"type": "message", "message": update})
			})
			switch {
			case err != nil:
				sendError(err.Error(), nil)
			case reply.Failed:
				_ = conn.WriteJSON(gin.H{"type": "error", "error": reply.Bot.Text, "reply": reply})
			default:
				_ = conn.WriteJSON(gin.H{"type": "done", "reply": reply})
			}
		case "new":
			if err := m.NewChat(ctx); err != nil && !errors.Is(err, chat.ErrSuperseded) {
				h.logger.Warnw("websocket new chat", "user_id", userID, "error", err)
			}
			_ = conn.WriteJSON(gin.H{"type": "state", "state": m.Snapshot()})
		default:
			sendError("unknown message type", nil)
		}
	}
}
