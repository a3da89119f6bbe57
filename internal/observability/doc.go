// Package observability provides observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry tracing integration
//
// Example usage:
//
//	import (
//	    "newsbot/internal/observability/logging"
//	    "newsbot/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("worker started")
//
//	    metrics.RecordArticlesMerged("dw", 10)
//	}
package observability
