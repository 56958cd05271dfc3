package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSHandler bridges the presentation layer to the session machines: it
// pushes state snapshots on every change and accepts the four actions
// (login, logout, start, answer).
type WSHandler struct {
	machines *app.MachineSet
	upgrader websocket.Upgrader
}

func NewWSHandler(machines *app.MachineSet) *WSHandler {
	return &WSHandler{
		machines: machines,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type loginPayload struct {
	Name string `json:"name"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type answerResult struct {
	Record  domain.AnswerRecord `json:"record"`
	Score   int                 `json:"score"`
	Index   int                 `json:"index"`
	Status  domain.Status       `json:"status"`
	Summary *domain.Summary     `json:"summary,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the connection and wires it to the player's machine.
// The player query parameter is a stable per-browser key; the display
// name comes later via the login action.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		http.Error(w, "missing player", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log.Printf("ws %s: player %s connected", connID, player)

	machine := h.machines.GetOrCreate(r.Context(), player)
	// Registered before the subscription cancel so it runs after it:
	// an idle machine is evicted once its last observer is gone.
	defer h.machines.Release(player)
	updates, cancel := machine.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws %s: write error: %v", connID, err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snapshot, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- stateMessage(snapshot):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "login":
			var payload loginPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid login payload")
				continue
			}
			if err := machine.Login(r.Context(), payload.Name); err != nil {
				send <- errorMessage(err.Error())
			}
		case "logout":
			machine.Logout(r.Context())
		case "start":
			if machine.Snapshot().Identity == nil {
				send <- errorMessage(domain.ErrNoIdentity.Error())
				continue
			}
			// The fetch (and its retry backoff) must not block the read
			// loop; the outcome arrives through the snapshot stream. A
			// detached context matches the original's fire-and-forget
			// fetch: disconnecting does not cancel it, the generation
			// counter discards stale results instead.
			startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
			go func() {
				defer cancelStart()
				if err := machine.StartSession(startCtx); err != nil && !errors.Is(err, domain.ErrNoIdentity) {
					log.Printf("ws %s: start session: %v", connID, err)
				}
			}()
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid answer payload")
				continue
			}
			record, err := machine.SubmitAnswer(r.Context(), payload.Option)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			snapshot := machine.Snapshot()
			result := answerResult{
				Record: record,
				Score:  snapshot.Session.Score,
				Index:  snapshot.Session.CurrentIndex,
				Status: snapshot.Session.Status,
			}
			if snapshot.Session.Status == domain.StatusFinished {
				summary := domain.Summarize(snapshot.Session)
				result.Summary = &summary
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		default:
			send <- errorMessage("unsupported message type")
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Printf("ws %s: player %s disconnected", connID, player)
}

func stateMessage(snapshot app.Snapshot) outboundMessage[any] {
	return outboundMessage[any]{Type: "state", Payload: snapshot}
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
