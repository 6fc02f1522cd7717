// Package logging configures the structured logger shared by streamchat
// components. The terminal belongs to the TUI, so records go to a file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu      sync.RWMutex
	base    = slog.New(slog.NewTextHandler(io.Discard, nil))
	logFile *os.File
)

// ParseLevel converts a config string into a slog level
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a text logger writing to w
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", "streamchat"))
}

// Init opens path for appending and installs it as the default sink.
// Calling Init again replaces the previous file.
func Init(path string, level slog.Level) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	base = New(f, level)
	return nil
}

// SetLogger installs an arbitrary logger (tests, stderr in one-shot mode)
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// Logger returns the current base logger
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// With returns a child logger scoped to a component
func With(component string) *slog.Logger {
	return Logger().With(slog.String("component", component))
}

// Close flushes and closes the log file, if any
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	base = slog.New(slog.NewTextHandler(io.Discard, nil))
	return err
}
