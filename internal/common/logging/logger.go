// Package logging provides structured logging using zap
package logging

import (
	"fmt"
	"io"
	"os"
	"time"
)

// NewDefaultLogger creates a logger with default configuration using zap
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// Setup builds the global logger from a level name and an optional log file.
// An empty file keeps output on stdout. The returned closer releases the file.
func Setup(level, file string) (func() error, error) {
	var (
		out    io.Writer
		closer = func() error { return nil }
	)

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", file, err)
		}
		out = f
		closer = f.Close
	}

	logger, err := NewZapLogger(LogConfig{
		Level:      ParseLevel(level),
		Output:     out,
		TimeFormat: time.RFC3339,
	})
	if err != nil {
		_ = closer()
		return nil, err
	}

	SetGlobalLogger(logger)
	return closer, nil
}

// MustSync flushes any buffered log entries for zap loggers
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
