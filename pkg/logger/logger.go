// Package logger wraps zap behind a small package-level API so the rest
// of the server doesn't thread a logger instance through every call.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	once sync.Once
)

// Init builds the global logger. Call once at process startup.
func Init(production bool) {
	once.Do(func() {
		var cfg zap.Config
		if production {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "timestamp"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		} else {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}

		built, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			built = zap.NewNop()
		}
		log = built
	})
}

// L returns the global logger, building a development fallback if Init
// was never called (useful in tests).
func L() *zap.Logger {
	if log == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return log
}

func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

// RoomID and SessionID are the field conventions every room/session log
// line uses so log lines can be correlated without logging document text.
func RoomID(id string) zap.Field    { return zap.String("room_id", id) }
func SessionID(id string) zap.Field { return zap.String("session_id", id) }

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
