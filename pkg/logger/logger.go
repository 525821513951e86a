// Package logger provides the shared JSON slog setup and helpers for carrying
// a request-scoped logger through a context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds the configuration for the logger.
type Config struct {
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service is attached to every record as "service" when set.
	Service string
	// Level is the minimum log level to output.
	Level slog.Level
	// AddSource adds source code position to log records.
	AddSource bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:  slog.LevelInfo,
		Output: os.Stdout,
	}
}

// New creates a new JSON logger with the provided configuration.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	})

	log := slog.New(handler)
	if cfg.Service != "" {
		log = log.With("service", cfg.Service)
	}
	return log
}

// NewWithLevel creates a JSON logger on stdout tagged with service.
func NewWithLevel(service string, level slog.Level) *slog.Logger {
	cfg := DefaultConfig()
	cfg.Service = service
	cfg.Level = level
	return New(cfg)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return New(&Config{Output: io.Discard, Level: slog.LevelError})
}

// ParseLevel converts a string to a slog.Level, ignoring case.
// Supported values: "debug", "info", "warn", "error".
// Returns slog.LevelInfo if the level string is not recognized.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

type ctxKey struct{}

// IntoContext returns a copy of ctx carrying log.
func IntoContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored in ctx, or fallback when there is none.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return fallback
}
