// Package zapadapters bridges the biblioteca logging ports to zap. It is
// for applications that already run zap and want catalog logs to flow
// through the same cores and encoders as the rest of their output.
package zapadapters

import (
	"context"

	"go.uber.org/zap"

	"github.com/ramonpiresone/biblioteca"
)

// ZapLogger implements biblioteca.Logger and biblioteca.ContextualLogger on
// top of a *zap.Logger. Key-value args pass through zap's sugared logger, so
// loose pairs and strongly typed zap fields both work. The context variants
// exist to satisfy the contextual port; zap carries no per-call context, so
// the context itself is not used.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger creates a logger bridge over the given zap logger. The caller
// keeps ownership of the logger and its sync lifecycle.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

// Debug logs a debug message.
func (l *ZapLogger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

// Info logs an info message.
func (l *ZapLogger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

// Warn logs a warning message.
func (l *ZapLogger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

// Error logs an error message.
func (l *ZapLogger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

// DebugContext logs a debug message, ignoring the context.
func (l *ZapLogger) DebugContext(_ context.Context, msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

// InfoContext logs an info message, ignoring the context.
func (l *ZapLogger) InfoContext(_ context.Context, msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

// WarnContext logs a warning message, ignoring the context.
func (l *ZapLogger) WarnContext(_ context.Context, msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

// ErrorContext logs an error message, ignoring the context.
func (l *ZapLogger) ErrorContext(_ context.Context, msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

var _ biblioteca.Logger = (*ZapLogger)(nil)

var _ biblioteca.ContextualLogger = (*ZapLogger)(nil)
