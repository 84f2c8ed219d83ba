package sqliteengine

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/ramonpiresone/biblioteca"
)

// isBusyError reports whether err is SQLITE_BUSY or SQLITE_LOCKED, the two
// codes SQLite raises when a statement loses the race for the single writer
// or for a table lock.
func isBusyError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// joinStageError wraps a driver error with the failure-stage sentinel, except
// for busy and locked errors which surface as biblioteca.ErrConflict so the
// retry layer recognizes them. The driver error stays reachable through
// errors.Is and errors.As either way.
func joinStageError(stage error, err error) error {
	if isBusyError(err) {
		return errors.Join(biblioteca.ErrConflict, err)
	}

	return errors.Join(stage, err)
}
