package testdoubles

import (
	"context"
	"maps"
	"sync"

	"github.com/ramonpiresone/biblioteca"
)

// SpySpan is a recorded span. It implements SpanContext so instrumented code
// can annotate it while the spy keeps the full span lifecycle for assertions.
type SpySpan struct {
	mu         sync.Mutex
	Name       string
	Attributes map[string]string
	Status     string
	Finished   bool
}

// SetStatus implements the SpanContext interface for testing.
func (s *SpySpan) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = status
}

// AddAttribute implements the SpanContext interface for testing.
func (s *SpySpan) AddAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Attributes[key] = value
}

// TracingCollectorSpy is a TracingCollector implementation that captures
// span lifecycles for testing.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	spans []*SpySpan
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy instance.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan implements the TracingCollector interface for testing.
func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, biblioteca.SpanContext) {
	span := &SpySpan{
		Name:       name,
		Attributes: maps.Clone(attrs),
	}

	if span.Attributes == nil {
		span.Attributes = make(map[string]string)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.spans = append(s.spans, span)

	return ctx, span
}

// FinishSpan implements the TracingCollector interface for testing.
func (s *TracingCollectorSpy) FinishSpan(spanCtx biblioteca.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpan)
	if !ok {
		return
	}

	span.mu.Lock()
	defer span.mu.Unlock()

	span.Status = status
	span.Finished = true

	for key, value := range attrs {
		span.Attributes[key] = value
	}
}

// Spans returns all captured spans in start order.
func (s *TracingCollectorSpy) Spans() []*SpySpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*SpySpan(nil), s.spans...)
}

// FindSpan returns the first span with the given name, or nil.
func (s *TracingCollectorSpy) FindSpan(name string) *SpySpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, span := range s.spans {
		if span.Name == name {
			return span
		}
	}

	return nil
}

// FinishedSpanCount returns the number of spans that were finished.
func (s *TracingCollectorSpy) FinishedSpanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0

	for _, span := range s.spans {
		span.mu.Lock()
		if span.Finished {
			count++
		}
		span.mu.Unlock()
	}

	return count
}

// Compile-time check to ensure TracingCollectorSpy implements TracingCollector.
var _ biblioteca.TracingCollector = (*TracingCollectorSpy)(nil)
