package testdoubles

import (
	"context"
	"sync"
	"time"

	"github.com/ramonpiresone/biblioteca"
)

// ContextualMetricsCollectorSpy extends MetricsCollectorSpy with the
// context-aware recording methods. Instrumented code probes for the
// contextual interface with a type assertion, so tests use this spy to verify
// the contextual path is preferred when a collector offers it.
type ContextualMetricsCollectorSpy struct {
	MetricsCollectorSpy

	ctxMu           sync.Mutex
	contextualCalls int
}

// NewContextualMetricsCollectorSpy creates a new ContextualMetricsCollectorSpy instance.
func NewContextualMetricsCollectorSpy() *ContextualMetricsCollectorSpy {
	return &ContextualMetricsCollectorSpy{}
}

// RecordDurationContext implements the ContextualMetricsCollector interface for testing.
func (s *ContextualMetricsCollectorSpy) RecordDurationContext(
	_ context.Context,
	metric string,
	duration time.Duration,
	labels map[string]string,
) {
	s.noteContextualCall()
	s.RecordDuration(metric, duration, labels)
}

// IncrementCounterContext implements the ContextualMetricsCollector interface for testing.
func (s *ContextualMetricsCollectorSpy) IncrementCounterContext(
	_ context.Context,
	metric string,
	labels map[string]string,
) {
	s.noteContextualCall()
	s.IncrementCounter(metric, labels)
}

// RecordValueContext implements the ContextualMetricsCollector interface for testing.
func (s *ContextualMetricsCollectorSpy) RecordValueContext(
	_ context.Context,
	metric string,
	value float64,
	labels map[string]string,
) {
	s.noteContextualCall()
	s.RecordValue(metric, value, labels)
}

// ContextualCallCount returns how many recordings arrived through the
// context-aware methods rather than the base interface.
func (s *ContextualMetricsCollectorSpy) ContextualCallCount() int {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()

	return s.contextualCalls
}

func (s *ContextualMetricsCollectorSpy) noteContextualCall() {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()

	s.contextualCalls++
}

// Compile-time check to ensure ContextualMetricsCollectorSpy implements ContextualMetricsCollector.
var _ biblioteca.ContextualMetricsCollector = (*ContextualMetricsCollectorSpy)(nil)
