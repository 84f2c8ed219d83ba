// Package testdoubles provides test doubles (spies) for the observability
// interfaces of the catalog.
//
// The spies capture logging, metrics, and tracing calls for verification:
//   - LoggerSpy and ContextualLoggerSpy: capture structured log records
//   - MetricsCollectorSpy: captures counter, duration, and value recordings
//   - TracingCollectorSpy: captures started and finished spans
//
// They enable testing of observability instrumentation without a real
// telemetry backend.
package testdoubles
