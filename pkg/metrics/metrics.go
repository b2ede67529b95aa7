// Package metrics declares the Prometheus collectors scraped at /metrics,
// grounded on RoseWrightdev-Video-Conferencing's internal/v1/metrics
// package: namespace/subsystem/name grouping, promauto registration, and
// Gauge-for-current-state vs. Counter-for-cumulative-events conventions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms tracks the current number of registered rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collabhub",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the current member count of each room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "collabhub",
		Subsystem: "room",
		Name:      "participants",
		Help:      "Current number of members in each room",
	}, []string{"room_id"})

	// ActiveConnections tracks the current number of open WebSocket
	// connections across all rooms.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collabhub",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// OperationsTotal counts every document-operation processed, labeled
	// by kind and by whether it was applied or rejected.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collabhub",
		Subsystem: "document",
		Name:      "operations_total",
		Help:      "Total document operations processed",
	}, []string{"type", "result"})

	// RoomSweepTotal counts rooms removed by the idle sweep.
	RoomSweepTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collabhub",
		Subsystem: "room",
		Name:      "sweep_removed_total",
		Help:      "Total rooms removed by the idle sweep",
	})
)

// Sink adapts the package-level collectors to room.RegistryMetrics so
// pkg/room never imports the prometheus client directly.
type Sink struct{}

func (Sink) SetActiveRooms(n int) {
	ActiveRooms.Set(float64(n))
}

func (Sink) SetRoomParticipants(roomID string, n int) {
	RoomParticipants.WithLabelValues(roomID).Set(float64(n))
}

func (Sink) DeleteRoomParticipants(roomID string) {
	RoomParticipants.DeleteLabelValues(roomID)
}

func (Sink) IncSweepRemoved() {
	RoomSweepTotal.Inc()
}

// RecordOperation records an applied or rejected document operation.
func RecordOperation(kind string, applied bool) {
	result := "rejected"
	if applied {
		result = "applied"
	}
	OperationsTotal.WithLabelValues(kind, result).Inc()
}

// ConnectionOpened/ConnectionClosed track live WebSocket connections.
func ConnectionOpened() { ActiveConnections.Inc() }
func ConnectionClosed() { ActiveConnections.Dec() }
