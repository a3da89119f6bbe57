package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the newsbot application.
var tracer = otel.Tracer("newsbot")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// StartSpan starts a span with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on the span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
