package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler is the command/UI driver: it exposes the orchestrator's session
// operations over a websocket and relays scope events from the hub.
type WSHandler struct {
	orchestrator *app.Orchestrator
	hub          *Hub
	upgrader     websocket.Upgrader
}

func NewWSHandler(orchestrator *app.Orchestrator, hub *Hub) *WSHandler {
	return &WSHandler{
		orchestrator: orchestrator,
		hub:          hub,
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

type startPayload struct {
	Topic         string      `json:"topic"`
	Difficulty    string      `json:"difficulty"`
	QuestionCount int         `json:"questionCount"`
	Mode          domain.Mode `json:"mode"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type stoppedPayload struct {
	Stopped bool `json:"stopped"`
}

// ServeWS upgrades the request and wires the connection into one tenant
// scope. Session events are broadcast via the hub; command responses go only
// to the issuing connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	scope := domain.TenantScope{
		CommunityID: r.URL.Query().Get("communityId"),
		ChannelID:   r.URL.Query().Get("channelId"),
	}
	userID := r.URL.Query().Get("userId")
	if scope.CommunityID == "" || scope.ChannelID == "" || userID == "" {
		http.Error(w, "missing communityId, channelId, or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe(scope)
	defer cancel()

	send := make(chan domain.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- event:
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
		h.handleCommand(scope, userID, inbound, send)
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleCommand(scope domain.TenantScope, userID string, inbound inboundMessage, send chan<- domain.Event) {
	switch inbound.Type {
	case "start":
		var payload startPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorEvent("invalid start payload")
			return
		}
		if payload.Mode == "" {
			payload.Mode = domain.ModeMultiAnswer
		}
		// The upgraded connection has no request context; session startup
		// bounds generation with its own timeout.
		view, err := h.orchestrator.StartSession(
			context.Background(),
			scope, userID, payload.Topic, payload.Difficulty, payload.QuestionCount, payload.Mode,
		)
		if err != nil {
			send <- errorEvent(userFacingError(err))
			return
		}
		send <- domain.Event{Type: "started", Payload: view}

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorEvent("invalid answer payload")
			return
		}
		outcome, err := h.orchestrator.SubmitAnswer(scope, userID, payload.Answer)
		if err != nil {
			send <- errorEvent(userFacingError(err))
			return
		}
		send <- domain.Event{Type: "answerResult", Payload: outcome}

	case "stop":
		stopped := h.orchestrator.StopSession(scope)
		send <- domain.Event{Type: "stopped", Payload: stoppedPayload{Stopped: stopped}}

	case "status":
		view, found := h.orchestrator.GetSessionSnapshot(scope)
		if !found {
			send <- errorEvent(domain.ErrSessionNotFound.Error())
			return
		}
		send <- domain.Event{Type: "status", Payload: view}

	default:
		send <- errorEvent("unsupported message type")
	}
}

func errorEvent(message string) domain.Event {
	return domain.Event{Type: "error", Payload: errorPayload{Message: message}}
}

// userFacingError keeps internal bug-guard details out of client messages.
func userFacingError(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrGenerationFailed),
		errors.Is(err, domain.ErrNotRecovering):
		return err.Error()
	default:
		return "something went wrong, the session was ended"
	}
}
