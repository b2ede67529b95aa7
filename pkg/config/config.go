// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tunables for the collaboration server.
type Config struct {
	Port                 string
	Env                  string
	AllowedOrigin        string
	RoomMaxUsers         int
	RoomHistoryLimit     int
	RoomIdleTTL          time.Duration
	RoomSweepInterval    time.Duration
	PresenceActiveWindow time.Duration
}

// Load reads a .env file if present, then overlays process environment
// variables, falling back to defaults for anything unset.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "3001"),
		Env:                  getEnv("COLLABHUB_ENV", "development"),
		AllowedOrigin:        getEnv("ALLOWED_ORIGIN", "http://localhost:5173"),
		RoomMaxUsers:         getEnvInt("ROOM_MAX_USERS", 10),
		RoomHistoryLimit:     getEnvInt("ROOM_HISTORY_LIMIT", 1000),
		RoomIdleTTL:          getEnvDuration("ROOM_IDLE_TTL", 30*time.Minute),
		RoomSweepInterval:    getEnvDuration("ROOM_SWEEP_INTERVAL", 5*time.Minute),
		PresenceActiveWindow: getEnvDuration("PRESENCE_ACTIVE_WINDOW", 30*time.Second),
	}
}

// GetServerAddr returns the listen address derived from Port.
func (c *Config) GetServerAddr() string {
	return ":" + c.Port
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
