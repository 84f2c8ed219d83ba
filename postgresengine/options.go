package postgresengine

import (
	"regexp"

	"github.com/ramonpiresone/biblioteca"
)

// The observability ports are shared with the rest of the catalog so one
// logger or collector instance can serve components and engines alike.
type (
	// Logger receives SQL query logging at debug level and operational
	// information, warnings, and errors above it.
	Logger = biblioteca.Logger

	// ContextualLogger is the context-aware logging port, for backends that
	// correlate log records with the active trace.
	ContextualLogger = biblioteca.ContextualLogger

	// MetricsCollector receives operation durations, error counts, and
	// transaction conflict counts from the store.
	MetricsCollector = biblioteca.MetricsCollector

	// TracingCollector receives one span per store operation.
	TracingCollector = biblioteca.TracingCollector

	// SpanContext is an active tracing span created by a TracingCollector.
	SpanContext = biblioteca.SpanContext
)

// tablePrefixPattern accepts prefixes that keep the combined table names
// legal PostgreSQL identifiers without quoting.
var tablePrefixPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithTablePrefix prepends the given prefix to the three table names, so
// multiple catalogs can share one database. The prefix must be a plain
// identifier fragment such as "catalog_".
func WithTablePrefix(prefix string) Option {
	return func(s *Store) error {
		if !tablePrefixPattern.MatchString(prefix) {
			return biblioteca.ErrInvalidTablePrefix
		}

		s.tablePrefix = prefix

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: operation outcomes with durations and row counts (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger

		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store. When both
// loggers are configured the contextual one takes precedence, so log records
// carry trace correlation when tracing is enabled.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger

		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// The collector will receive operation durations, database error counts, and
// transaction conflict counts.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector

		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
// The collector will receive one span per store operation including error
// tracking and context propagation into the contextual logger.
func WithTracing(collector TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector

		return nil
	}
}
