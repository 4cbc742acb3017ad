package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/netdash/netdash-core/internal/infrastructure/logging"
)

// WebSocket constants.
const (
	WSTypeEvent = "event"

	// defaultSendBuffer is the per-session outbound buffer when the
	// config leaves it unset.
	defaultSendBuffer = 256
)

// ErrSessionClosed is returned by Send on a session whose connection is
// gone or whose outbound buffer is full.
var ErrSessionClosed = errors.New("api: session closed")

// WSMessage is the envelope pushed to WebSocket sessions.
type WSMessage struct {
	Type      string `json:"type"`
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// Session is one connected UI. A Send error marks the session dead;
// the hub evicts it and carries on with the others.
type Session interface {
	ID() string
	Send(data []byte) error
}

// Hub manages WebSocket sessions and broadcasts events to all of them.
type Hub struct {
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewHub creates a WebSocket hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[string]Session),
	}
}

// Run blocks until the context is cancelled, then disconnects every
// session.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a session to the hub.
func (h *Hub) Register(session Session) {
	h.mu.Lock()
	h.sessions[session.ID()] = session
	h.mu.Unlock()
	h.logger.Debug("websocket session connected", "id", session.ID(), "sessions", h.SessionCount())
}

// Unregister removes a session. Unknown IDs are tolerated; sessions can
// race their own eviction.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	session, existed := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if existed {
		if closer, ok := session.(interface{ close() }); ok {
			closer.close()
		}
		h.logger.Debug("websocket session disconnected", "id", id, "sessions", h.SessionCount())
	}
}

// Broadcast sends an event to every connected session. Delivery is
// best-effort: a session whose send fails is evicted, and the failure
// never aborts delivery to the rest. Per-session ordering follows call
// order.
func (h *Hub) Broadcast(eventType string, payload any) {
	msg := WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	// Snapshot under the lock, send outside it.
	h.mu.RLock()
	sessions := make([]Session, 0, len(h.sessions))
	for _, session := range h.sessions {
		sessions = append(sessions, session)
	}
	h.mu.RUnlock()

	for _, session := range sessions {
		if err := session.Send(data); err != nil {
			h.logger.Debug("evicting dead session", "id", session.ID(), "error", err)
			h.Unregister(session.ID())
		}
	}
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]Session)
	h.mu.Unlock()

	for _, session := range sessions {
		if closer, ok := session.(interface{ close() }); ok {
			closer.close()
		}
	}
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// wsSession is the gorilla-backed Session used in production. Send
// enqueues onto a buffered channel drained by writePump; a closed
// session or a full buffer returns ErrSessionClosed so the hub evicts
// it.
type wsSession struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *wsSession) ID() string { return c.id }

func (c *wsSession) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSessionClosed
	}
}

func (c *wsSession) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// handleWebSocket upgrades the HTTP connection to a WebSocket session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	buffer := s.wsCfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	session := &wsSession{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, buffer),
	}

	s.hub.Register(session)

	go s.writePump(session)
	go s.readPump(session)
}

// readPump reads from the connection until it closes. Incoming frames
// are discarded; clients talk to the hub over REST, the socket is
// push-only.
func (s *Server) readPump(session *wsSession) {
	defer func() {
		s.hub.Unregister(session.id)
		session.conn.Close()
	}()

	session.conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	session.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	session.conn.SetPongHandler(func(string) error {
		return session.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := session.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			} else {
				s.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		session.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
}

// writePump drains the session's send channel onto the connection and
// keeps it alive with protocol pings.
func (s *Server) writePump(session *wsSession) {
	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		session.conn.Close()
	}()

	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-session.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				session.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			session.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := session.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			session.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := session.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
