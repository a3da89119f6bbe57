// Package logging provides structured logging utilities using the standard library's log/slog package.
// It offers helper functions for creating loggers with consistent configuration and context propagation.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a new structured logger with JSON output.
// The log level can be controlled via the LOG_LEVEL environment variable.
// Supported levels: debug, info, warn, error
// Default level: info
func NewLogger() *slog.Logger {
	return New(os.Stdout, "json")
}

// NewTextLogger creates a new structured logger with human-readable text output.
// This is useful for local development and debugging.
func NewTextLogger() *slog.Logger {
	return New(os.Stdout, "text")
}

// New creates a logger writing to w. format is "json" or "text".
// The level is read from LOG_LEVEL.
func New(w io.Writer, format string) *slog.Logger {
	logLevel := levelFromEnv()
	opts := &slog.HandlerOptions{
		Level: logLevel,
		// Add source code location for error and warn levels
		AddSource: logLevel <= slog.LevelWarn,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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

// WithRefreshID returns a context carrying the refresh id, and a logger tagged with it.
func WithRefreshID(ctx context.Context, logger *slog.Logger, refreshID string) (context.Context, *slog.Logger) {
	ctx = context.WithValue(ctx, refreshIDContextKey, refreshID)
	logger = logger.With(slog.String("refresh_id", refreshID))
	return WithLogger(ctx, logger), logger
}

// RefreshIDFromContext returns the refresh id stored in ctx, or "".
func RefreshIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(refreshIDContextKey).(string); ok {
		return id
	}
	return ""
}

// WithFields returns a new logger with additional structured fields.
// Fields are provided as key-value pairs.
func WithFields(logger *slog.Logger, fields map[string]interface{}) *slog.Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

// FromContext retrieves the logger from the context, or returns the default logger if not found.
// This enables passing loggers through the application via context.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

type contextKey string

const (
	loggerContextKey    contextKey = "logger"
	refreshIDContextKey contextKey = "refresh_id"
)
