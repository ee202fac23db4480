package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestChatWebsocketStreamsReply(t *testing.T) {
	env := setupTestRouter(t)
	token := env.register(t, "grace")

	server := httptest.NewServer(env.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/chat/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil || frame["type"] != "state" {
		t.Fatalf("expected initial state frame, got %v err=%v", frame, err)
	}

	if err := conn.WriteJSON(map[string]string{"type": "send", "text": "Any tax tips?"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	updates := 0
	for {
		frame = map[string]any{}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if frame["type"] == "message" {
			updates++
			continue
		}
		break
	}

	if frame["type"] != "done" {
		t.Fatalf("expected done frame, got %v", frame)
	}
	if updates < 3 {
		t.Fatalf("expected streamed updates, got %d", updates)
	}
	reply, _ := frame["reply"].(map[string]any)
	followups, _ := reply["followups"].([]any)
	if len(followups) == 0 || followups[0] != "Which deductions might apply to me?" {
		t.Fatalf("expected tax follow-ups, got %v", reply["followups"])
	}
	env.chats.Wait()
}
