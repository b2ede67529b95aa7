// Package app wires the collaboration server together: a Server struct
// holding the router and the long-lived managers, constructed once by
// NewServer and started by Start.
package app

import (
	"net/http"
	"time"

	"collabhub/pkg/config"
	"collabhub/pkg/httpapi"
	"collabhub/pkg/logger"
	"collabhub/pkg/metrics"
	"collabhub/pkg/protocol"
	"collabhub/pkg/room"
	"collabhub/pkg/session"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the application server.
type Server struct {
	router   *mux.Router
	config   *config.Config
	registry *room.Registry
	hub      *session.Hub

	stopSweeper chan struct{}
}

// NewServer builds the server: loads configuration, initializes logging,
// constructs the room registry and connection hub, and wires routes.
func NewServer() *Server {
	cfg := config.Load()
	logger.Init(cfg.IsProduction())

	roomCfg := room.Config{
		MaxUsers:             cfg.RoomMaxUsers,
		HistoryLimit:         cfg.RoomHistoryLimit,
		PresenceActiveWindow: cfg.PresenceActiveWindow,
		StatsActiveWindow:    5 * time.Minute,
	}

	registry := room.NewRegistry(roomCfg, protocol.WelcomeDocument, cfg.RoomIdleTTL)
	registry.SetMetrics(metrics.Sink{})

	hub := session.NewHub()

	s := &Server{
		router:      mux.NewRouter(),
		config:      cfg,
		registry:    registry,
		hub:         hub,
		stopSweeper: make(chan struct{}),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/ws", s.handleWebSocket)

	httpapi.New(s.registry, time.Now()).Register(s.router)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := session.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := session.New(conn, s.registry, s.hub)
	logger.Info("session connected", logger.SessionID(sess.ID))
	sess.Run()
	logger.Info("session disconnected", logger.SessionID(sess.ID))
}

// Start runs the idle-room sweeper and the HTTP server. It blocks until
// the server stops.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = s.config.GetServerAddr()
	}

	go s.registry.StartSweeper(s.config.RoomSweepInterval, s.stopSweeper)

	logger.Info("collaboration server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, corsMiddleware(s.config.AllowedOrigin, s.router))
}

// Close stops the background sweeper.
func (s *Server) Close() error {
	close(s.stopSweeper)
	logger.Sync()
	return nil
}

// corsMiddleware allows cross-origin access from a single configured
// origin.
func corsMiddleware(allowedOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == allowedOrigin || allowedOrigin == "*" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
