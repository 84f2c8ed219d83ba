package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/ramonpiresone/biblioteca"
)

// Metric names emitted by the Store.
const (
	StoreDurationMetric  = "biblioteca_store_duration_seconds"
	StoreErrorsMetric    = "biblioteca_store_errors_total"
	StoreConflictsMetric = "biblioteca_store_conflicts_total"
)

const (
	labelStatus    = "status"
	labelErrorType = "error_type"
	statusSuccess  = "success"
	statusError    = "error"
)

func (s *Store) logDebug(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)

		return
	}

	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) logInfo(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)

		return
	}

	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Store) logWarn(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)

		return
	}

	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Store) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)

		return
	}

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level.
func (s *Store) logQueryWithDuration(ctx context.Context, sqlQuery string, operation string, duration time.Duration) {
	s.logDebug(ctx, logMsgSQLExecuted+operation, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
}

// logOperation logs operational information at info level.
func (s *Store) logOperation(ctx context.Context, action string, args ...any) {
	s.logInfo(ctx, logMsgOperation+action, args...)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (s *Store) startSpan(ctx context.Context, operation string, attrs map[string]string) (context.Context, SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, "biblioteca.store."+operation, attrs)
}

// observe finishes the span and records duration/error metrics for one store
// operation.
func (s *Store) observe(ctx context.Context, span SpanContext, operation string, start time.Time, err error) {
	status := statusSuccess
	spanStatus := biblioteca.SpanStatusOK

	if err != nil {
		status = statusError
		spanStatus = biblioteca.SpanStatusError
	}

	if span != nil {
		if err != nil {
			span.AddAttribute(labelErrorType, errorTypeLabel(err))
		}

		s.tracingCollector.FinishSpan(span, spanStatus, nil)
	}

	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{logAttrOperation: operation, labelStatus: status}

	if contextual, ok := s.metricsCollector.(biblioteca.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, StoreDurationMetric, time.Since(start), labels)
	} else {
		s.metricsCollector.RecordDuration(StoreDurationMetric, time.Since(start), labels)
	}

	if err == nil {
		return
	}

	errorLabels := map[string]string{logAttrOperation: operation, labelErrorType: errorTypeLabel(err)}

	if contextual, ok := s.metricsCollector.(biblioteca.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, StoreErrorsMetric, errorLabels)
	} else {
		s.metricsCollector.IncrementCounter(StoreErrorsMetric, errorLabels)
	}
}

// recordTransactionConflict counts one serialization conflict, the signal the
// retry layer reacts to.
func (s *Store) recordTransactionConflict(ctx context.Context) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{logAttrOperation: operationTransaction}

	if contextual, ok := s.metricsCollector.(biblioteca.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, StoreConflictsMetric, labels)
	} else {
		s.metricsCollector.IncrementCounter(StoreConflictsMetric, labels)
	}
}
