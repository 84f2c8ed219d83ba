package postgresengine

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/ramonpiresone/biblioteca"
)

// SQLSTATE codes that mark a lost race between serializable transactions.
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
)

// isSerializationFailure reports whether err carries one of the two conflict
// SQLSTATEs. Both driver families are checked because the store runs behind
// pgx as well as database/sql based adapters.
func isSerializationFailure(err error) bool {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == pgCodeSerializationFailure || pgxErr.Code == pgCodeDeadlockDetected
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)

		return code == pgCodeSerializationFailure || code == pgCodeDeadlockDetected
	}

	return false
}

// joinStageError wraps a driver error with the failure-stage sentinel, except
// for serialization failures which surface as biblioteca.ErrConflict so the
// retry layer recognizes them. The driver error stays reachable through
// errors.Is and errors.As either way.
func joinStageError(stage error, err error) error {
	if isSerializationFailure(err) {
		return errors.Join(biblioteca.ErrConflict, err)
	}

	return errors.Join(stage, err)
}

// errorTypeLabel extracts a string representation of the error kind for metrics labeling.
func errorTypeLabel(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, biblioteca.ErrConflict):
		return "conflict"
	case errors.Is(err, biblioteca.ErrNotFound):
		return "not_found"
	case errors.Is(err, biblioteca.ErrValidation):
		return "validation"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "other"
	}
}
