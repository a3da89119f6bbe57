package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsAttributesAndError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := StartSpan(context.Background(), "fetch.source", attribute.String("source_id", "dw"))
	EndSpan(span, errors.New("HTTP 503"))

	_, ok := StartSpan(context.Background(), "refresh")
	EndSpan(ok, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "fetch.source", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("source_id", "dw"))
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Events(), 1)

	assert.Equal(t, "refresh", spans[1].Name())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}

func TestGetTracer(t *testing.T) {
	assert.NotNil(t, GetTracer())
}
