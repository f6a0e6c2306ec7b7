package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsar-relay/relay/internal/domain"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 16 * 1024
	sendBufferSize   = 1000
	maxSubscriptions = 10
)

// State is a WS session's position in the Authenticated -> Live -> Closed
// state machine. Sessions are constructed already Authenticated: token
// presentation and verification happen in AuthMiddleware before the stream
// handler builds a session.
type State int

const (
	StateAuthenticated State = iota
	StateLive
	StateClosed
)

// WSSession is a live WebSocket connection registered with a LocalHub.
type WSSession struct {
	id   string
	conn *websocket.Conn
	user *domain.User
	hub  *LocalHub
	log  *slog.Logger

	mu     sync.Mutex
	state  State
	topics map[string]struct{}

	send      chan any
	closeOnce sync.Once
}

func NewWSSession(id string, conn *websocket.Conn, user *domain.User, hub *LocalHub, log *slog.Logger) *WSSession {
	if log == nil {
		log = slog.Default()
	}
	return &WSSession{
		id:     id,
		conn:   conn,
		user:   user,
		hub:    hub,
		log:    log.With("session_id", id, "user_id", user.UserID),
		state:  StateAuthenticated,
		topics: make(map[string]struct{}),
		send:   make(chan any, sendBufferSize),
	}
}

func (s *WSSession) ID() string { return s.id }

// Deliver is called by LocalHub.Broadcast. A full send buffer drops the
// oldest queued event and retries once before reporting failure, keeping
// one slow session from blocking fan-out to the others.
func (s *WSSession) Deliver(event any) error {
	select {
	case s.send <- event:
		return nil
	default:
	}
	select {
	case <-s.send:
	default:
	}
	select {
	case s.send <- event:
		return nil
	default:
		return fmt.Errorf("hub: session %s send buffer full", s.id)
	}
}

// Run drives the session until the connection closes, either from a
// client disconnect or a transport error. Disconnect from the hub runs on
// every exit path.
func (s *WSSession) Run() {
	defer s.hub.Disconnect(s.id)
	defer s.closeConn()

	done := make(chan struct{})
	go func() {
		s.writePump()
		close(done)
	}()
	s.readPump()
	<-done
}

func (s *WSSession) closeConn() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}

func (s *WSSession) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame map[string]any
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.sendError("BAD_FRAME", "invalid json")
			continue
		}
		typ, _ := frame["type"].(string)

		s.mu.Lock()
		state := s.state
		s.mu.Unlock()

		switch state {
		case StateAuthenticated:
			if typ != "subscribe" {
				s.sendError("SUBSCRIPTION_ERROR", "first frame must be subscribe")
				s.closeWithCode(websocket.ClosePolicyViolation, "expected subscribe")
				return
			}
			if !s.handleSubscribe(frame) {
				return
			}
		case StateLive:
			s.handleLiveFrame(typ, frame)
		}
	}
}

func (s *WSSession) handleSubscribe(frame map[string]any) bool {
	topics := stringSlice(frame["topics"])
	if len(topics) == 0 || len(topics) > maxSubscriptions {
		s.sendError("SUBSCRIPTION_ERROR", fmt.Sprintf("topics must be 1..%d", maxSubscriptions))
		s.closeWithCode(websocket.ClosePolicyViolation, "invalid subscription")
		return false
	}

	s.hub.Connect(s, topics)

	s.mu.Lock()
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}
	s.state = StateLive
	s.mu.Unlock()

	s.sendFrame(map[string]any{
		"type":       "subscribed",
		"topics":     topics,
		"session_id": s.id,
		"timestamp":  time.Now().UTC(),
	})
	return true
}

func (s *WSSession) handleLiveFrame(typ string, frame map[string]any) {
	switch typ {
	case "ping":
		s.sendFrame(map[string]any{"type": "pong", "timestamp": time.Now().UTC()})
	case "ack":
		s.log.Debug("ack received", "message_id", frame["message_id"])
	case "unsubscribe":
		topics := stringSlice(frame["topics"])
		s.hub.Unsubscribe(s.id, topics)
		s.mu.Lock()
		for _, t := range topics {
			delete(s.topics, t)
		}
		s.mu.Unlock()
	default:
		s.sendError("UNKNOWN_MESSAGE_TYPE", fmt.Sprintf("unrecognized frame type %q", typ))
	}
}

func (s *WSSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WSSession) sendFrame(frame any) {
	select {
	case s.send <- frame:
	default:
		s.log.Warn("dropped outbound frame, send buffer full")
	}
}

func (s *WSSession) sendError(code, message string) {
	s.sendFrame(map[string]any{"type": "error", "code": code, "message": message})
}

func (s *WSSession) closeWithCode(code int, reason string) {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := websocket.FormatCloseMessage(code, reason)
	s.conn.WriteMessage(websocket.CloseMessage, msg)
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
