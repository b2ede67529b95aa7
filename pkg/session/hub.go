package session

import (
	"sync"

	"collabhub/pkg/protocol"
	"collabhub/pkg/room"
)

// Hub is the broadcast fan-out registry: for each room it tracks which
// live Sessions are members, independent of Room's Presence
// map, so the domain package (pkg/room) never needs to know about
// transports. Ordering between broadcasts to two distinct recipients is
// not guaranteed; ordering of messages to any one recipient is FIFO
// because each Session has its own buffered send channel drained by a
// single writePump goroutine.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Session
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*Session)}
}

// Join registers sess as a live member of roomID for broadcast purposes.
func (h *Hub) Join(roomID string, sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Session)
		h.rooms[roomID] = members
	}
	members[sess.ID] = sess
}

// Leave removes sessionID from roomID's fan-out set.
func (h *Hub) Leave(roomID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast sends data to every session currently registered for roomID
// except the one whose id equals except (pass "" to exclude no one).
func (h *Hub) Broadcast(roomID, except string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sess := range h.rooms[roomID] {
		if id == except {
			continue
		}
		sess.deliver(data)
	}
}

// drainRoomBroadcasts relays every operation r.SubmitOperation applies,
// in that same order, to every session in r's room except the one that
// submitted it. It is the sole reader of r's outbox, so that channel's
// FIFO order becomes the broadcast order regardless of how the
// goroutines that called SubmitOperation get scheduled afterward. It
// returns once r's outbox is closed, which happens when r is torn down.
func (h *Hub) drainRoomBroadcasts(r *room.Room) {
	for op := range r.Outbox() {
		h.Broadcast(r.ID(), op.UserID, encodeJSON(protocol.MsgDocumentUpdate, op))
	}
}
