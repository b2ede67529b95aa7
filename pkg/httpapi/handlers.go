// Package httpapi exposes the read-only health/introspection HTTP
// surface, wired with gorilla/mux.
package httpapi

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"collabhub/pkg/protocol"
	"collabhub/pkg/room"

	"github.com/gorilla/mux"
)

// Handlers holds the dependencies the introspection surface needs.
type Handlers struct {
	registry  *room.Registry
	startedAt time.Time
}

// New constructs the introspection Handlers.
func New(registry *room.Registry, startedAt time.Time) *Handlers {
	return &Handlers{registry: registry, startedAt: startedAt}
}

// Register mounts the introspection routes onto router.
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/room/{id}", h.RoomDetail).Methods(http.MethodGet)
}

type serverInfo struct {
	Uptime float64 `json:"uptime"`
	Memory uint64  `json:"memory"`
	Rooms  int     `json:"rooms"`
}

type healthResponse struct {
	Status    string               `json:"status"`
	Timestamp int64                `json:"timestamp"`
	Server    serverInfo           `json:"server"`
	Rooms     []protocol.RoomStats `json:"rooms"`
}

// Health answers GET /health with server + per-room statistics.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	rooms := h.registry.List()

	stats := make([]protocol.RoomStats, 0, len(rooms))
	for _, rm := range rooms {
		stats = append(stats, toRoomStats(rm.GetStats()))
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UnixMilli(),
		Server: serverInfo{
			Uptime: time.Since(h.startedAt).Seconds(),
			Memory: mem.Alloc,
			Rooms:  len(rooms),
		},
		Rooms: stats,
	}

	writeJSON(w, http.StatusOK, resp)
}

type roomDetailResponse struct {
	protocol.RoomStats
	Users            []protocol.UserView `json:"users"`
	RecentOperations []interface{}       `json:"recentOperations"`
}

// RoomDetail answers GET /room/{id} with a room's full stats, its
// current members, and its last 10 history entries.
func (h *Handlers) RoomDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rm, err := h.registry.Lookup(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": protocol.ErrTextRoomNotFound})
		return
	}

	members := rm.GetUserList()
	users := make([]protocol.UserView, 0, len(members))
	for _, p := range members {
		users = append(users, protocol.UserView{
			ID:       p.ID,
			Name:     p.Name,
			Color:    p.Color,
			Cursor:   protocol.CursorPos{Line: p.Cursor.Line, Column: p.Cursor.Column},
			JoinedAt: p.JoinedAt.UnixMilli(),
			LastSeen: p.LastSeen.UnixMilli(),
			IsActive: rm.IsActive(p),
		})
	}

	recent := rm.RecentHistory(protocol.RecentOperationsLimit)
	ops := make([]interface{}, 0, len(recent))
	for _, entry := range recent {
		ops = append(ops, entry.Operation)
	}

	resp := roomDetailResponse{
		RoomStats:        toRoomStats(rm.GetStats()),
		Users:            users,
		RecentOperations: ops,
	}

	writeJSON(w, http.StatusOK, resp)
}

func toRoomStats(st room.Stats) protocol.RoomStats {
	return protocol.RoomStats{
		ID:             st.ID,
		UserCount:      st.UserCount,
		MaxUsers:       st.MaxUsers,
		DocumentLength: st.DocumentLength,
		OperationCount: st.OperationCount,
		CreatedAt:      st.CreatedAt.UnixMilli(),
		LastActivity:   st.LastActivity.UnixMilli(),
		IsActive:       st.IsActive,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
