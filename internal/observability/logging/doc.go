// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Refresh ID propagation
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "newsbot/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("worker started", slog.String("version", "1.0"))
//	}
//
//	func refresh(ctx context.Context) {
//	    ctx, logger := logging.WithRefreshID(ctx, slog.Default(), uuid.NewString())
//	    logger.Info("refresh started")
//	}
package logging
