package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventforge/aggregate-eventstore-go/eventstore/oteladapters"
)

func newCollectorWithRecorder(t *testing.T) (*oteladapters.TracingCollector, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	return oteladapters.NewTracingCollector(provider.Tracer("eventstore-test")), recorder
}

func attributeValue(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}

	return "", false
}

func Test_TracingCollector_StartSpan_PropagatesSpanThroughContext(t *testing.T) {
	collector, _ := newCollectorWithRecorder(t)

	spanCtx, span := collector.StartSpan(context.Background(), "eventstore.append", nil)

	assert.True(t, trace.SpanContextFromContext(spanCtx).IsValid())
	require.NotNil(t, span)

	collector.FinishSpan(span, "ok", nil)
}

func Test_TracingCollector_FinishSpan_EndsSpanWithAttributesAndStatus(t *testing.T) {
	collector, recorder := newCollectorWithRecorder(t)

	_, span := collector.StartSpan(context.Background(), "eventstore.append", map[string]string{
		"aggregate_id": "c5b0c6f0-0000-0000-0000-000000000001",
	})
	collector.FinishSpan(span, "ok", map[string]string{"event_count": "3"})

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "eventstore.append", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)

	aggregateID, found := attributeValue(ended[0], "aggregate_id")
	require.True(t, found)
	assert.Equal(t, "c5b0c6f0-0000-0000-0000-000000000001", aggregateID)

	eventCount, found := attributeValue(ended[0], "event_count")
	require.True(t, found)
	assert.Equal(t, "3", eventCount)
}

func Test_TracingCollector_FinishSpan_MapsFailureStatuses(t *testing.T) {
	collector, recorder := newCollectorWithRecorder(t)

	for _, status := range []string{"error", "failed", "conflict", "canceled"} {
		_, span := collector.StartSpan(context.Background(), "eventstore.append", nil)
		collector.FinishSpan(span, status, nil)
	}

	ended := recorder.Ended()
	require.Len(t, ended, 4)
	for _, span := range ended {
		assert.Equal(t, codes.Error, span.Status().Code)
	}
}

func Test_TracingCollector_FinishSpan_KeepsUnknownStatusAsAttribute(t *testing.T) {
	collector, recorder := newCollectorWithRecorder(t)

	_, span := collector.StartSpan(context.Background(), "eventstore.load", nil)
	collector.FinishSpan(span, "partial", nil)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Unset, ended[0].Status().Code)

	status, found := attributeValue(ended[0], "status")
	require.True(t, found)
	assert.Equal(t, "partial", status)
}
