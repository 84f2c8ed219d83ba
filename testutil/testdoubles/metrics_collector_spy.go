package testdoubles

import (
	"maps"
	"sync"
	"time"

	"github.com/ramonpiresone/biblioteca"
)

// SpyMetricRecord represents a recorded metrics call.
type SpyMetricRecord struct {
	Kind     string // "counter", "duration", or "value"
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
}

// MetricsCollectorSpy is a MetricsCollector implementation that captures
// metrics recording calls for testing.
type MetricsCollectorSpy struct {
	mu      sync.Mutex
	records []SpyMetricRecord
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy instance.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

// RecordDuration implements the MetricsCollector interface for testing.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyMetricRecord{
		Kind:     "duration",
		Metric:   metric,
		Duration: duration,
		Labels:   maps.Clone(labels),
	})
}

// IncrementCounter implements the MetricsCollector interface for testing.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyMetricRecord{
		Kind:   "counter",
		Metric: metric,
		Labels: maps.Clone(labels),
	})
}

// RecordValue implements the MetricsCollector interface for testing.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyMetricRecord{
		Kind:   "value",
		Metric: metric,
		Value:  value,
		Labels: maps.Clone(labels),
	})
}

// Records returns a copy of all captured metric records.
func (s *MetricsCollectorSpy) Records() []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyMetricRecord(nil), s.records...)
}

// CounterIncrements returns how often the counter was incremented with
// labels matching the given subset. Label values in want must match exactly;
// labels not named in want are ignored.
func (s *MetricsCollectorSpy) CounterIncrements(metric string, want map[string]string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0

	for _, record := range s.records {
		if record.Kind != "counter" || record.Metric != metric {
			continue
		}

		if labelsContain(record.Labels, want) {
			count++
		}
	}

	return count
}

// DurationCount returns how many duration observations were recorded for the
// metric, regardless of labels.
func (s *MetricsCollectorSpy) DurationCount(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0

	for _, record := range s.records {
		if record.Kind == "duration" && record.Metric == metric {
			count++
		}
	}

	return count
}

// Reset clears all recorded metric calls.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.records[:0]
}

func labelsContain(labels map[string]string, want map[string]string) bool {
	for key, value := range want {
		if labels[key] != value {
			return false
		}
	}

	return true
}

// Compile-time check to ensure MetricsCollectorSpy implements MetricsCollector.
var _ biblioteca.MetricsCollector = (*MetricsCollectorSpy)(nil)
