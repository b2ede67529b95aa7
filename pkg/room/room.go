// Package room implements the per-room document/state machine: the
// membership map, the bounded operation history, and the
// validate-then-apply pipeline.
package room

import (
	"errors"
	"sync"
	"time"

	"collabhub/pkg/document"
	"collabhub/pkg/logger"
	"collabhub/pkg/protocol"

	"go.uber.org/zap"
)

// Sentinel errors matching the exact user-visible strings sent over the wire.
var (
	ErrRoomFull        = errors.New(protocol.ErrTextRoomFull)
	ErrInvalidUserData = errors.New(protocol.ErrTextInvalidUserData)
)

// outboxBufferSize bounds how many applied operations can be queued for
// broadcast before the drain side falls behind and new ones are dropped.
const outboxBufferSize = 256

// CursorPos is a {line, column} pair, independent of the wire-level
// protocol package so the domain model has no dependency on JSON shapes.
type CursorPos struct {
	Line   int
	Column int
}

// Presence is the per-participant record held within a room.
type Presence struct {
	ID       string
	Name     string
	Color    string
	Cursor   CursorPos
	JoinedAt time.Time
	LastSeen time.Time
}

// OperationRecord is an applied operation as stored in history: the
// document.Operation plus its server-stamped fields (room id, timestamp).
type OperationRecord = document.Operation

// Stats is the wire-independent shape of Room.GetStats().
type Stats struct {
	ID             string
	UserCount      int
	MaxUsers       int
	DocumentLength int
	OperationCount int
	CreatedAt      time.Time
	LastActivity   time.Time
	IsActive       bool
}

// Config bounds a Room's resource limits, sourced from pkg/config.
type Config struct {
	MaxUsers             int
	HistoryLimit         int
	PresenceActiveWindow time.Duration
	StatsActiveWindow    time.Duration
}

// Room owns one shared document, its membership, and its bounded history.
// Every exported method that touches shared state acquires mu; no method
// performs network I/O or blocks on anything but mu itself.
type Room struct {
	id  string
	cfg Config

	mu           sync.Mutex
	doc          *document.Document
	members      map[string]*Presence
	history      *ring
	createdAt    time.Time
	lastActivity time.Time
	outbox       chan document.Operation
	closed       bool
}

// New constructs a Room with the fixed welcome document.
func New(id, welcomeDocument string, cfg Config) *Room {
	now := time.Now()
	return &Room{
		id:           id,
		cfg:          cfg,
		doc:          document.New(welcomeDocument),
		members:      make(map[string]*Presence),
		history:      newRing(cfg.HistoryLimit),
		createdAt:    now,
		lastActivity: now,
		outbox:       make(chan document.Operation, outboxBufferSize),
	}
}

// Outbox returns the channel of operations applied by SubmitOperation, in
// the exact order they were applied. A single reader is expected to drain
// it and broadcast each one; the channel is closed once the room is torn
// down, which ends that reader's loop.
func (r *Room) Outbox() <-chan document.Operation {
	return r.outbox
}

// ID returns the room's id.
func (r *Room) ID() string { return r.id }

// AddUser registers a new participant. It rejects with ErrRoomFull once
// the room is at capacity, and ErrInvalidUserData when name or color is
// empty. On success it returns the new Presence and a snapshot of every
// member's current Presence (including the joiner), all captured under
// the room lock so dispatch can broadcast/reply without racing a
// concurrent join or leave.
func (r *Room) AddUser(id, name, color string) (Presence, []Presence, error) {
	if name == "" || color == "" {
		return Presence{}, nil, ErrInvalidUserData
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= r.cfg.MaxUsers {
		return Presence{}, nil, ErrRoomFull
	}

	now := time.Now()
	p := &Presence{ID: id, Name: name, Color: color, JoinedAt: now, LastSeen: now}
	r.members[id] = p
	r.lastActivity = now

	logger.Info("user joined room", logger.RoomID(r.id), logger.SessionID(id), zap.Int("userCount", len(r.members)))

	return *p, r.snapshotMembersLocked(), nil
}

// RemoveUser is idempotent. It returns the removed Presence (or false if
// the id wasn't a member) and the remaining member count.
func (r *Room) RemoveUser(id string) (Presence, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[id]
	if !ok {
		return Presence{}, len(r.members), false
	}
	delete(r.members, id)
	r.lastActivity = time.Now()

	logger.Info("user left room", logger.RoomID(r.id), logger.SessionID(id), zap.Int("userCount", len(r.members)))

	return *p, len(r.members), true
}

// UpdateUserActivity bumps lastSeen for a member, if present.
func (r *Room) UpdateUserActivity(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.members[id]; ok {
		p.LastSeen = time.Now()
	}
}

// UpdateUserCursor stores a member's latest cursor position, free-form
// and untransformed: cursor drift against concurrent edits is accepted
// rather than corrected. Returns the updated Presence and whether the
// member exists.
func (r *Room) UpdateUserCursor(id string, pos CursorPos) (Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[id]
	if !ok {
		return Presence{}, false
	}
	p.Cursor = pos
	p.LastSeen = time.Now()
	return *p, true
}

// MemberCount returns the current number of members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// HasMember reports whether id is currently a member.
func (r *Room) HasMember(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[id]
	return ok
}

// SubmitOperation validates op against the current document and, on
// success, applies it, appends it to history, and enqueues it on the
// outbox, all under a single lock acquisition. Enqueuing the broadcast
// copy before unlocking — rather than leaving the caller to broadcast it
// after the lock is released — is what makes the outbox's delivery order
// match apply order: two goroutines racing to submit concurrent
// operations can still reach their own post-unlock code in either order,
// but only one of them can be holding the lock at the moment it pushes to
// the channel, so the channel sees them in apply order regardless of how
// the two goroutines are scheduled afterward.
func (r *Room) SubmitOperation(op document.Operation) (document.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := document.Validate(r.doc, op); err != nil {
		return document.Operation{}, err
	}

	now := time.Now()
	op.RoomID = r.id
	op.Timestamp = now.UnixMilli()

	if _, err := document.Apply(r.doc, op); err != nil {
		return document.Operation{}, err
	}

	r.history.push(HistoryEntry{Operation: op, AppliedAt: now})
	r.lastActivity = now

	if !r.closed {
		select {
		case r.outbox <- op:
		default:
			logger.Warn("dropping document-update broadcast, outbox full", logger.RoomID(r.id))
		}
	}

	return op, nil
}

// DocumentSnapshot returns the current document text and the version
// proxy: the number of entries in history. That equals the number of
// operations applied so far until HistoryLimit is reached, and stays at
// HistoryLimit after that.
func (r *Room) DocumentSnapshot() (text string, version int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.String(), r.history.len()
}

// RecentHistory returns the last n applied operations, oldest first.
func (r *Room) RecentHistory(n int) []HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.last(n)
}

// GetUserList returns a snapshot of every member's Presence.
func (r *Room) GetUserList() []Presence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotMembersLocked()
}

func (r *Room) snapshotMembersLocked() []Presence {
	out := make([]Presence, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, *p)
	}
	return out
}

// IsActive reports the presence activity predicate for a single member's
// Presence: now - lastSeen < the configured active window.
func (r *Room) IsActive(p Presence) bool {
	return time.Since(p.LastSeen) < r.cfg.PresenceActiveWindow
}

// GetStats returns the room's diagnostic summary. IsActive here uses a
// longer "recent activity" window than Room.IsActive's, since a room
// stays listed as active well after its last member goes idle.
func (r *Room) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		ID:             r.id,
		UserCount:      len(r.members),
		MaxUsers:       r.cfg.MaxUsers,
		DocumentLength: r.doc.Len(),
		OperationCount: r.history.len(),
		CreatedAt:      r.createdAt,
		LastActivity:   r.lastActivity,
		IsActive:       time.Since(r.lastActivity) < r.cfg.StatsActiveWindow,
	}
}

// ShouldCleanup reports whether the room is empty and has been idle
// longer than idleTTL.
func (r *Room) ShouldCleanup(idleTTL time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0 && time.Since(r.lastActivity) > idleTTL
}

// TryLock attempts to acquire the room's mutex without blocking. Used by
// the registry when it needs to peek at a room's state while holding its
// own lock, without risking a stall on a room mid-operation.
func (r *Room) TryLock() bool {
	return r.mu.TryLock()
}

// Unlock releases a lock acquired via TryLock.
func (r *Room) Unlock() {
	r.mu.Unlock()
}

// shouldCleanupLocked is ShouldCleanup's body for callers that already
// hold the lock via TryLock.
func (r *Room) shouldCleanupLocked(idleTTL time.Duration) bool {
	return len(r.members) == 0 && time.Since(r.lastActivity) > idleTTL
}

// memberCountLocked is MemberCount's body for callers that already hold
// the lock via TryLock.
func (r *Room) memberCountLocked() int {
	return len(r.members)
}

// closeLocked closes the outbox for callers that already hold the lock
// via TryLock, ending the drain goroutine's range loop. Safe to call more
// than once.
func (r *Room) closeLocked() {
	if !r.closed {
		r.closed = true
		close(r.outbox)
	}
}
