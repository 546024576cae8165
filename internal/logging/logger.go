// Package logging wraps log/slog for the library and the CLI: a console
// handler for interactive use, JSON for machine consumption, and an audit
// helper that records every change made to the engine.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"grimm.is/serac/internal/clock"
)

// Level is the slog severity used across the module.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Config selects a Logger's output, format, and threshold.
type Config struct {
	Level  Level
	Output io.Writer // nil writes to stderr
	JSON   bool
}

// Logger is a slog.Logger whose threshold can be adjusted after creation.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New builds a logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level := &slog.LevelVar{}
	level.Set(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = NewConsoleHandler(out, opts)
	}
	return &Logger{Logger: slog.New(h), level: level}
}

// SetLevel adjusts the logger's threshold.
func (l *Logger) SetLevel(v Level) {
	l.level.Set(v)
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Default returns the process-wide logger, creating a stderr console
// logger at info level on first use.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(Config{Level: LevelInfo})
	}
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Audit records a change made to the filtering engine.
func (l *Logger) Audit(action, resource string, details map[string]any) {
	args := []any{
		"audit", true,
		"action", action,
		"resource", resource,
		"timestamp", clock.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range details {
		args = append(args, k, v)
	}
	l.Info("AUDIT", args...)
}

// Audit records a change made to the filtering engine on the default
// logger.
func Audit(action, resource string, details map[string]any) {
	Default().Audit(action, resource, details)
}
