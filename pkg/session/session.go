// Package session implements the per-connection state machine and the
// broadcast fan-out: reading and writing one WebSocket connection and
// routing its frames through the protocol dispatcher.
package session

import (
	"net/http"
	"time"

	"collabhub/pkg/logger"
	"collabhub/pkg/metrics"
	"collabhub/pkg/room"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Upgrader upgrades an HTTP connection to a WebSocket, accepting any
// origin. The CORS middleware in app.Server only sets response headers;
// it does not restrict which origins may open a WebSocket.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Session is one open client transport. It holds at most one room
// binding at a time and owns the goroutines that pump that transport.
type Session struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	registry *room.Registry
	hub      *Hub

	// currentRoomID is mutated only by this session's own read-pump
	// goroutine, so it needs no lock of its own. A session binds to at
	// most one room at a time.
	currentRoomID string
}

// New creates a Session wrapping an already-upgraded connection.
func New(conn *websocket.Conn, registry *room.Registry, hub *Hub) *Session {
	return &Session{
		ID:       uuid.New().String(),
		conn:     conn,
		send:     make(chan []byte, 256),
		registry: registry,
		hub:      hub,
	}
}

// Run drives the session until the connection closes: it starts the
// write pump and blocks in the read pump, then tears down the room
// binding on exit.
func (s *Session) Run() {
	metrics.ConnectionOpened()
	defer metrics.ConnectionClosed()

	done := make(chan struct{})
	go s.writePump(done)

	s.readPump()
	close(done)

	s.leaveCurrentRoom()
	s.conn.Close()
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("unexpected close", logger.SessionID(s.ID), zap.Error(err))
			}
			return
		}
		s.dispatch(raw)
	}
}

func (s *Session) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warn("write failed", logger.SessionID(s.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// deliver enqueues a raw frame for this session, dropping it if the
// session's outbound buffer is full rather than blocking the fan-out: a
// slow or stuck reader must never stall delivery to everyone else.
func (s *Session) deliver(data []byte) {
	select {
	case s.send <- data:
	default:
		logger.Warn("dropping message to slow session", logger.SessionID(s.ID))
	}
}

func (s *Session) leaveCurrentRoom() {
	if s.currentRoomID == "" {
		return
	}
	roomID := s.currentRoomID
	s.currentRoomID = ""

	r, err := s.registry.Lookup(roomID)
	if err != nil {
		s.hub.Leave(roomID, s.ID)
		return
	}

	_, remaining, ok := r.RemoveUser(s.ID)
	s.hub.Leave(roomID, s.ID)
	if !ok {
		return
	}

	s.registry.Metrics().SetRoomParticipants(roomID, remaining)
	s.hub.Broadcast(roomID, s.ID, encodeUserLeft(s.ID))

	if remaining == 0 {
		s.registry.RemoveIfEmpty(roomID)
	}
}
