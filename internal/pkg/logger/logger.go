package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger instance. It is a no-op until InitLogger runs.
var Log = zap.NewNop()

// Maps a LOG_LEVEL value onto a zap level. Blank means info.
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log level %q: %w", name, err)
	}
	return level, nil
}

// Replaces Log with a JSON logger writing to stdout. An unknown level
// still builds an info logger and the error is logged through it.
func InitLogger(logLevel string) error {
	level, levelErr := ParseLevel(logLevel)

	encoder := zap.NewProductionEncoderConfig()
	encoder.MessageKey = "message"
	encoder.TimeKey = "time"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.EncoderConfig = encoder
	cfg.InitialFields = map[string]any{"service": "sitemonitor"}

	log, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	Log = log

	if levelErr != nil {
		Log.Warn("Unknown log level, using info", zap.Error(levelErr))
	}
	return nil
}

// Returns a child of the global logger tagged with the component name.
func Named(component string) *zap.Logger {
	return Log.Named(component)
}
