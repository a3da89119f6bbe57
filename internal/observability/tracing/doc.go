// Package tracing provides OpenTelemetry tracing integration.
//
// Spans are created through the global tracer provider. Without an installed
// provider they are no-ops, so callers never need to check for one.
//
// Example usage:
//
//	import "newsbot/internal/observability/tracing"
//
//	func refreshSource(ctx context.Context, id string) (err error) {
//	    ctx, span := tracing.StartSpan(ctx, "fetch.source", attribute.String("source_id", id))
//	    defer func() { tracing.EndSpan(span, err) }()
//	    // ... fetch ...
//	}
package tracing
