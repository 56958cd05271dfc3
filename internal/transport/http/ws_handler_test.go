package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"

	"github.com/gorilla/websocket"
)

type fixedSource struct{}

func (fixedSource) Fetch(_ context.Context, _ int) ([]domain.Question, error) {
	return []domain.Question{
		{Prompt: "What is 2 + 2?", CorrectAnswer: "4", Options: []string{"3", "4", "5", "22"}},
		{Prompt: "Capital of Japan?", CorrectAnswer: "Tokyo", Options: []string{"Kyoto", "Tokyo", "Osaka", "Nagoya"}},
	}, nil
}

func TestWebSocketSessionFlow(t *testing.T) {
	ctx := context.Background()
	machines := app.NewMachineSet(ctx, func(key string) *app.Machine {
		return app.NewMachine(key, fixedSource{}, memory.NewStateStore(), app.Config{QuestionCount: 2})
	})
	wsHandler := NewWSHandler(machines)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?player=browser-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The initial snapshot arrives before any action.
	snap := readState(conn, t, func(s app.Snapshot) bool { return true })
	if snap.Session.Status != domain.StatusIdle {
		t.Fatalf("expected idle on connect, got %s", snap.Session.Status)
	}

	writeAction(conn, t, "login", map[string]any{"name": "Alice"})
	snap = readState(conn, t, func(s app.Snapshot) bool { return s.Identity != nil })
	if snap.Identity.Name != "Alice" {
		t.Fatalf("expected Alice, got %+v", snap.Identity)
	}

	writeAction(conn, t, "start", nil)
	snap = readState(conn, t, func(s app.Snapshot) bool { return s.Session.Status == domain.StatusPlaying })
	if len(snap.Session.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(snap.Session.Questions))
	}

	writeAction(conn, t, "answer", map[string]any{"option": "4"})
	result := readAnswerResult(conn, t)
	if !result.Record.Correct || result.Score != 1 || result.Index != 1 {
		t.Fatalf("unexpected answer result: %+v", result)
	}

	writeAction(conn, t, "answer", map[string]any{"option": "Osaka"})
	result = readAnswerResult(conn, t)
	if result.Record.Correct || result.Status != domain.StatusFinished {
		t.Fatalf("expected wrong final answer to finish, got %+v", result)
	}
	if result.Summary == nil || result.Summary.Percentage != 50 {
		t.Fatalf("expected 50%% summary on finish, got %+v", result.Summary)
	}
}

func TestWebSocketStartBeforeLoginReturnsError(t *testing.T) {
	ctx := context.Background()
	machines := app.NewMachineSet(ctx, func(key string) *app.Machine {
		return app.NewMachine(key, fixedSource{}, memory.NewStateStore(), app.Config{QuestionCount: 2})
	})
	wsHandler := NewWSHandler(machines)

	server := httptest.NewServer(http.HandlerFunc(wsHandler.ServeWS))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "?player=browser-2"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readState(conn, t, func(s app.Snapshot) bool { return true })

	writeAction(conn, t, "start", nil)
	message := readError(conn, t)
	if message != domain.ErrNoIdentity.Error() {
		t.Fatalf("expected login-required error, got %q", message)
	}
}

func TestWebSocketRejectsMissingPlayer(t *testing.T) {
	machines := app.NewMachineSet(context.Background(), func(key string) *app.Machine {
		return app.NewMachine(key, fixedSource{}, memory.NewStateStore(), app.Config{})
	})
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(machines).ServeWS))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func writeAction(conn *websocket.Conn, t *testing.T, action string, payload any) {
	t.Helper()
	msg := map[string]any{"type": action}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", action, err)
	}
}

// readState reads messages until a state snapshot satisfies the predicate.
func readState(conn *websocket.Conn, t *testing.T, ok func(app.Snapshot) bool) app.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		typ, raw := readNext(conn, t)
		if typ != "state" {
			continue
		}
		var snap app.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
		if ok(snap) {
			return snap
		}
	}
	t.Fatalf("no matching state message")
	return app.Snapshot{}
}

func readAnswerResult(conn *websocket.Conn, t *testing.T) answerResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		typ, raw := readNext(conn, t)
		if typ != "answerResult" {
			continue
		}
		var result answerResult
		if err := json.Unmarshal(raw, &result); err != nil {
			t.Fatalf("unmarshal answer result: %v", err)
		}
		return result
	}
	t.Fatalf("no answerResult message")
	return answerResult{}
}

func readError(conn *websocket.Conn, t *testing.T) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		typ, raw := readNext(conn, t)
		if typ != "error" {
			continue
		}
		var payload errorPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("unmarshal error payload: %v", err)
		}
		return payload.Message
	}
	t.Fatalf("no error message")
	return ""
}

func readNext(conn *websocket.Conn, t *testing.T) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}
