// Package server exposes one elevator controller over websocket.
// Operator consoles send floor requests, sensor feeds send state overrides,
// and every connected client receives the controller's events and state.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xyproto/randomstring"

	"go-elevator-controller/pkg/elevator"
)

const sessionIDLength = 6

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Message types
// 메시지 타입 정의
type ClientMessage struct {
	Action     string `json:"action"`
	Floor      int    `json:"floor,omitempty"`
	IsMoving   bool   `json:"isMoving,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Overweight bool   `json:"overweight,omitempty"`
}

type ServerMessage struct {
	Type       string      `json:"type"`
	EventType  string      `json:"eventType,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  string      `json:"timestamp,omitempty"`
	Floor      int         `json:"floor"`
	Direction  string      `json:"direction"`
	IsMoving   bool        `json:"isMoving"`
	Overweight bool        `json:"overweight"`
	Pending    []int       `json:"pending"`
}

// Hub fans controller events out to every connected session.
type Hub struct {
	ctrl   *elevator.Controller
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewHub creates a hub serving ctrl.
func NewHub(ctrl *elevator.Controller) *Hub {
	return &Hub{
		ctrl:     ctrl,
		logger:   slog.Default().With("component", "hub"),
		sessions: make(map[*Session]struct{}),
	}
}

// Run forwards controller events until ctx is cancelled.
// It must be the only reader of the controller's event channel.
func (h *Hub) Run(ctx context.Context) error {
	events := h.ctrl.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			h.broadcast(event)
		}
	}
}

func (h *Hub) broadcast(event elevator.Event) {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.sendEvent(event)
		s.sendState()
	}
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// SessionCount returns the number of connected clients.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// HandleWebSocket upgrades the request and serves the session until it closes.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	session := newSession(h, conn)
	h.register(session)
	defer h.unregister(session)
	session.HandleMessages()
}

// Session manages one WebSocket connection.
// Session은 하나의 WebSocket 연결을 관리합니다.
type Session struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	mu     sync.Mutex // serializes writes
	logger *slog.Logger
}

func newSession(h *Hub, conn *websocket.Conn) *Session {
	id := randomstring.EnglishFrequencyString(sessionIDLength)
	return &Session{
		id:     id,
		hub:    h,
		conn:   conn,
		logger: slog.Default().With("session", id),
	}
}

// HandleMessages reads client messages until the connection closes.
func (s *Session) HandleMessages() {
	s.logger.Info("Session started", "remote_addr", s.conn.RemoteAddr())
	defer func() {
		_ = s.conn.Close()
		s.logger.Info("Session ended", "remote_addr", s.conn.RemoteAddr())
	}()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("Failed to parse message", "error", err)
			continue
		}

		s.handleAction(msg)
	}
}

func (s *Session) handleAction(msg ClientMessage) {
	s.logger.Debug("Action received", "action", msg.Action, "payload", msg)
	ctrl := s.hub.ctrl

	switch msg.Action {
	case "requestFloor":
		ctrl.RequestFloor(msg.Floor)
		s.sendState()
	case "reportSensor":
		ctrl.ReportSensorState(msg.IsMoving, msg.Floor, elevator.ParseDirection(msg.Direction), msg.Overweight)
		s.sendState()
	case "getState":
		s.sendState()
	default:
		s.logger.Warn("Unknown action", "action", msg.Action)
	}
}

func (s *Session) sendState() {
	state := s.hub.ctrl.Snapshot()
	pending := state.Pending
	if pending == nil {
		pending = []int{}
	}

	s.writeJSON(ServerMessage{
		Type:       "state",
		Floor:      state.Floor,
		Direction:  string(state.Direction),
		IsMoving:   state.IsMoving,
		Overweight: state.Overweight,
		Pending:    pending,
	})
}

func (s *Session) sendEvent(event elevator.Event) {
	s.writeJSON(ServerMessage{
		Type:      "event",
		EventType: string(event.Type),
		Payload:   event.Payload,
		Timestamp: event.Timestamp.Format(time.TimeOnly),
	})
}

func (s *Session) writeJSON(msg ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Error("Failed to write JSON message", "error", err)
	}
}
