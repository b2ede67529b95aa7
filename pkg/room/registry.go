package room

import (
	"errors"
	"strings"
	"sync"
	"time"

	"collabhub/pkg/idgen"
	"collabhub/pkg/logger"
	"collabhub/pkg/protocol"

	"go.uber.org/zap"
)

// ErrRoomNotFound is returned by Lookup for an unregistered room id.
var ErrRoomNotFound = errors.New(protocol.ErrTextRoomNotFound)

// ErrInvalidRoomID is returned for ids that don't satisfy the room id
// format, independent of whether a room with that id exists.
var ErrInvalidRoomID = errors.New(protocol.ErrTextInvalidRoomID)

const maxIDCollisionRetries = 5

// IsValidID reports whether id (expected already normalized via
// NormalizeID) matches the fixed room id format: exactly RoomIDLength
// uppercase letters and digits.
func IsValidID(id string) bool {
	if len(id) != protocol.RoomIDLength {
		return false
	}
	for _, c := range id {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// RegistryMetrics is the subset of pkg/metrics the registry drives. It is
// an interface so pkg/room never imports the metrics package directly,
// keeping the dependency edge pointing the way app wiring expects.
type RegistryMetrics interface {
	SetActiveRooms(n int)
	SetRoomParticipants(roomID string, n int)
	DeleteRoomParticipants(roomID string)
	IncSweepRemoved()
}

type noopMetrics struct{}

func (noopMetrics) SetActiveRooms(int)              {}
func (noopMetrics) SetRoomParticipants(string, int) {}
func (noopMetrics) DeleteRoomParticipants(string)   {}
func (noopMetrics) IncSweepRemoved()                {}

// Registry is the process-wide mapping from room id to Room.
type Registry struct {
	cfg     Config
	welcome string
	idleTTL time.Duration

	mu    sync.Mutex
	rooms map[string]*Room

	metrics RegistryMetrics
}

// NewRegistry constructs an empty registry. idleTTL is the sweep
// eligibility threshold used by StartSweeper; Sweep itself takes an
// explicit idleTTL so tests can drive it directly.
func NewRegistry(cfg Config, welcomeDocument string, idleTTL time.Duration) *Registry {
	return &Registry{
		cfg:     cfg,
		welcome: welcomeDocument,
		idleTTL: idleTTL,
		rooms:   make(map[string]*Room),
		metrics: noopMetrics{},
	}
}

// SetMetrics wires a metrics sink. Optional; defaults to a no-op.
func (reg *Registry) SetMetrics(m RegistryMetrics) {
	if m != nil {
		reg.metrics = m
	}
}

// Metrics exposes the wired metrics sink so callers that mutate a Room
// directly (join/leave) can keep per-room gauges current.
func (reg *Registry) Metrics() RegistryMetrics {
	return reg.metrics
}

// Create allocates a fresh room id, retrying on the (astronomically
// unlikely) case of a collision, constructs a Room with the welcome
// document, and registers it. No participant is added here; the caller
// joins its own session afterward.
func (reg *Registry) Create() (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var id string
	for attempt := 0; attempt < maxIDCollisionRetries; attempt++ {
		candidate, err := idgen.RoomID()
		if err != nil {
			return nil, err
		}
		if _, exists := reg.rooms[candidate]; !exists {
			id = candidate
			break
		}
	}
	if id == "" {
		return nil, errors.New("could not allocate a unique room id")
	}

	r := New(id, reg.welcome, reg.cfg)
	reg.rooms[id] = r
	reg.metrics.SetActiveRooms(len(reg.rooms))

	logger.Info("room created", logger.RoomID(id))
	return r, nil
}

// Lookup returns the Room for id, case-insensitively. Room ids are
// stored and compared uppercased.
func (reg *Registry) Lookup(id string) (*Room, error) {
	id = NormalizeID(id)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove unconditionally unlinks a room and closes its outbox.
func (reg *Registry) Remove(id string) {
	id = NormalizeID(id)

	reg.mu.Lock()
	r, ok := reg.rooms[id]
	if !ok {
		reg.mu.Unlock()
		return
	}
	delete(reg.rooms, id)
	reg.metrics.SetActiveRooms(len(reg.rooms))
	reg.metrics.DeleteRoomParticipants(id)
	reg.mu.Unlock()
	logger.Info("room removed", logger.RoomID(id))

	// The room is already unlinked and the registry lock released, so
	// waiting for the room's own lock here cannot stall the registry.
	r.mu.Lock()
	r.closeLocked()
	r.mu.Unlock()
}

// RemoveIfEmpty removes id only if it currently has no members, reporting
// whether it was removed. It never blocks on a room's own lock while
// holding the registry lock: if the room is mid-operation, the attempt
// simply fails and a later sweep or RemoveIfEmpty call catches it.
func (reg *Registry) RemoveIfEmpty(id string) bool {
	id = NormalizeID(id)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok {
		return false
	}
	if !r.TryLock() {
		return false
	}
	empty := r.memberCountLocked() == 0
	if empty {
		r.closeLocked()
	}
	r.Unlock()
	if !empty {
		return false
	}

	delete(reg.rooms, id)
	reg.metrics.SetActiveRooms(len(reg.rooms))
	reg.metrics.DeleteRoomParticipants(id)
	logger.Info("room removed (empty)", logger.RoomID(id))
	return true
}

// List returns a snapshot of every currently registered room.
func (reg *Registry) List() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

// Sweep removes every room that is empty and has been idle longer than
// idleTTL. It nests into each room's lock via a non-blocking TryLock, so
// a room mid apply/join/leave is simply skipped for this cycle rather
// than stalling the whole sweep.
func (reg *Registry) Sweep(idleTTL time.Duration) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	removed := 0
	for id, r := range reg.rooms {
		if !r.TryLock() {
			continue
		}
		cleanup := r.shouldCleanupLocked(idleTTL)
		if cleanup {
			r.closeLocked()
		}
		r.Unlock()

		if cleanup {
			delete(reg.rooms, id)
			reg.metrics.DeleteRoomParticipants(id)
			removed++
			reg.metrics.IncSweepRemoved()
			logger.Info("room swept (idle)", logger.RoomID(id))
		}
	}
	if removed > 0 {
		reg.metrics.SetActiveRooms(len(reg.rooms))
	}
	return removed
}

// StartSweeper runs Sweep on a fixed interval until stop is closed.
func (reg *Registry) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := reg.Sweep(reg.idleTTL); n > 0 {
				logger.Info("sweep cycle complete", zap.Int("removed", n))
			}
		}
	}
}

// NormalizeID uppercases a room id for case-insensitive lookup/storage.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
