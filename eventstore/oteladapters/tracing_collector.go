package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

// TracingCollector implements eventstore.TracingCollector on top of the
// OpenTelemetry tracing API, creating one span per store operation and
// propagating the span through the returned context.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a collector that starts its spans from the
// given tracer.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span with the given name and string attributes.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, eventstore.SpanContext) {
	options := make([]trace.SpanStartOption, 0, len(attrs))
	for key, value := range attrs {
		options = append(options, trace.WithAttributes(attribute.String(key, value)))
	}

	spanCtx, span := t.tracer.Start(ctx, name, options...)

	return spanCtx, &spanContext{span: span}
}

// FinishSpan sets the final status and attributes on the span and ends it.
func (t *TracingCollector) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	wrapped, ok := spanCtx.(*spanContext)
	if !ok {
		return
	}

	for key, value := range attrs {
		wrapped.span.SetAttributes(attribute.String(key, value))
	}

	wrapped.SetStatus(status)
	wrapped.span.End()
}

var _ eventstore.TracingCollector = (*TracingCollector)(nil)

// spanContext wraps an OpenTelemetry span as an eventstore.SpanContext.
type spanContext struct {
	span trace.Span
}

// SetStatus maps the store's status strings onto OpenTelemetry status codes.
// Unknown strings are kept as a plain span attribute.
func (s *spanContext) SetStatus(status string) {
	switch status {
	case "ok", "success", "completed":
		s.span.SetStatus(codes.Ok, "")
	case "error", "failed", "failure":
		s.span.SetStatus(codes.Error, "operation failed")
	case "canceled", "cancelled":
		s.span.SetStatus(codes.Error, "operation canceled")
	case "conflict":
		s.span.SetStatus(codes.Error, "sequence conflict")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

func (s *spanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ eventstore.SpanContext = (*spanContext)(nil)
