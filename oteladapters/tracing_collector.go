package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ramonpiresone/biblioteca"
)

// TracingCollector implements biblioteca.TracingCollector using the
// OpenTelemetry tracing API. Catalog operations become spans under the
// tracer's instrumentation scope, with trace context propagated through the
// returned context.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a tracing collector on top of the given
// tracer. The tracer should come from the application's TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span with the given name and attributes. The returned
// context carries the span for child operations.
func (t *TracingCollector) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, biblioteca.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(otelAttributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan sets the final attributes and status on the span and ends it.
// Span contexts from other tracing backends are ignored.
func (t *TracingCollector) FinishSpan(spanCtx biblioteca.SpanContext, status string, attrs map[string]string) {
	otelSpan, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	if len(attrs) > 0 {
		otelSpan.span.SetAttributes(otelAttributes(attrs)...)
	}

	otelSpan.setSpanStatus(status)
	otelSpan.span.End()
}

var _ biblioteca.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements biblioteca.SpanContext by wrapping an
// OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus sets the span status from the given status string.
func (s *OTelSpanContext) SetStatus(status string) {
	s.setSpanStatus(status)
}

// AddAttribute adds a string attribute to the span.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

// setSpanStatus maps the port's status strings onto OpenTelemetry status
// codes. Unknown strings are kept as a status attribute instead of guessing
// a code.
func (s *OTelSpanContext) setSpanStatus(status string) {
	switch status {
	case "ok", "success", "completed":
		s.span.SetStatus(codes.Ok, "")
	case "error", "failed", "failure":
		s.span.SetStatus(codes.Error, "Operation failed")
	case "cancelled", "canceled":
		s.span.SetStatus(codes.Error, "Operation cancelled")
	case "timeout":
		s.span.SetStatus(codes.Error, "Operation timed out")
	case "conflict":
		s.span.SetStatus(codes.Error, "Concurrency conflict")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

var _ biblioteca.SpanContext = (*OTelSpanContext)(nil)
