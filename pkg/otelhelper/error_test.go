package otelhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetErrorRecordsStatusAndAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := StartSpan(context.Background(), tracer, "pipeline.transcript",
		attribute.String(TranscriptIDKey, "tr-1"))
	SetError(span, errors.New("collaborator unavailable"),
		attribute.String(StageKey, "ANALYSIS_COMPLETED"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "collaborator unavailable", ended[0].Status().Description)

	require.Len(t, ended[0].Events(), 1)
	assert.Contains(t, ended[0].Events()[0].Attributes,
		attribute.String(StageKey, "ANALYSIS_COMPLETED"))
}
