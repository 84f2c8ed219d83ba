package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect import

	"github.com/ramonpiresone/biblioteca"
)

const (
	defaultBooksTableName     = "books"
	defaultLoansTableName     = "loans"
	defaultFavoritesTableName = "favorites"

	dialectSQLite = "sqlite3"

	// timeLayout is fixed width so lexicographic order on the text timestamp
	// columns matches chronological order. All values are stored in UTC.
	timeLayout = "2006-01-02 15:04:05.000000000"

	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database statement execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsIterationFailed = "failed reading database rows"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgBuildQueryFailed    = "failed to build sql query"
	logMsgEncodeColumnFailed  = "failed to encode book document column"
	logMsgDecodeColumnFailed  = "failed to decode book document column"
	logMsgParseTimeFailed     = "failed to parse stored timestamp"
	logMsgBeginTxFailed       = "failed to begin transaction"
	logMsgCommitFailed        = "failed to commit transaction"
	logMsgRollbackFailed      = "failed to roll back transaction"
	logMsgWriteConflict       = "write conflict detected, the database is busy"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "catalog store operation: "
	logMsgBookFetched         = "book fetched"
	logMsgBooksFetched        = "books fetched"
	logMsgBooksListed         = "books listed"
	logMsgBookUpserted        = "book upserted"
	logMsgBookTouched         = "book access time refreshed"
	logMsgLoanFetched         = "loan fetched"
	logMsgLoansListed         = "loans listed"
	logMsgFavoriteSaved       = "favorite saved"
	logMsgFavoriteDeleted     = "favorite removed"
	logMsgFavoritesListed     = "favorites listed"
	logMsgTransactionDone     = "transaction committed"

	logAttrError      = "error"
	logAttrQuery      = "query"
	logAttrDurationMS = "duration_ms"
	logAttrBookID     = "book_id"
	logAttrLoanID     = "loan_id"
	logAttrUserID     = "user_id"
	logAttrAdminID    = "admin_id"
	logAttrCount      = "count"

	operationGetBook          = "get_book"
	operationGetBooksByIDs    = "get_books_by_ids"
	operationListBooks        = "list_books"
	operationPutBook          = "put_book"
	operationTouchBook        = "touch_book"
	operationUpdateAvailable  = "update_available_quantity"
	operationGetLoan          = "get_loan"
	operationListLoans        = "list_loans"
	operationListLoansByAdmin = "list_loans_by_admin"
	operationCreateLoan       = "create_loan"
	operationMarkLoanReturned = "mark_loan_returned"
	operationPutFavorite      = "put_favorite"
	operationDeleteFavorite   = "delete_favorite"
	operationListFavorites    = "list_favorites"

	colID                 = "id"
	colTitle              = "title"
	colAuthors            = "authors"
	colFirstPublishYear   = "first_publish_year"
	colISBNs              = "isbns"
	colMetadata           = "metadata"
	colQuantity           = "quantity"
	colAvailableQuantity  = "available_quantity"
	colCreatedAt          = "created_at"
	colLastAccessedAt     = "last_accessed_at"
	colBookID             = "book_id"
	colBookTitle          = "book_title"
	colAdminID            = "admin_id"
	colAdminName          = "admin_name"
	colAdminEmail         = "admin_email"
	colBorrowerName       = "borrower_name"
	colBorrowerNationalID = "borrower_national_id"
	colLoanedAt           = "loaned_at"
	colDueAt              = "due_at"
	colStatus             = "status"
	colReturnedAt         = "returned_at"
	colUserID             = "user_id"
	colFavoritedAt        = "favorited_at"
)

// sqlRunner is the shared query surface of the open database handle and an
// open transaction, so the builders and scanners serve both paths.
type sqlRunner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqlBuilder is the part of a goqu dataset the store needs: rendering the
// statement to SQL with placeholder arguments.
type sqlBuilder interface {
	ToSQL() (sql string, params []interface{}, err error)
}

// Store is the SQLite implementation of the catalog storage interfaces: book
// records with their inventory counters, loan records, favorites, and atomic
// inventory transactions. SQLite runs every transaction serializably, so the
// transactional contract holds without extra isolation configuration.
type Store struct {
	db               *sql.DB
	tablePrefix      string
	logger           Logger
	contextualLogger ContextualLogger
}

var (
	_ biblioteca.RegistryStore      = (*Store)(nil)
	_ biblioteca.LoanReader         = (*Store)(nil)
	_ biblioteca.FavoriteStore      = (*Store)(nil)
	_ biblioteca.TransactionalStore = (*Store)(nil)
)

// NewStore creates a new Store over an open SQLite database handle with
// optional configuration. The schema must exist, see SchemaStatements.
func NewStore(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, biblioteca.ErrNilDatabaseConnection
	}

	s := &Store{db: db}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SchemaStatements returns the DDL for the three catalog tables with the
// given table name prefix, in execution order. Every statement is idempotent.
func SchemaStatements(tablePrefix string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sbooks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors TEXT NOT NULL DEFAULT '[]',
			first_publish_year INTEGER,
			isbns TEXT NOT NULL DEFAULT '[]',
			metadata TEXT NOT NULL DEFAULT '{}',
			quantity INTEGER,
			available_quantity INTEGER,
			created_at TEXT NOT NULL,
			last_accessed_at TEXT NOT NULL
		)`, tablePrefix),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%sbooks_title
			ON %sbooks (title, created_at, id)`, tablePrefix, tablePrefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sloans (
			id TEXT PRIMARY KEY,
			book_id TEXT NOT NULL,
			book_title TEXT NOT NULL,
			admin_id TEXT NOT NULL,
			admin_name TEXT NOT NULL,
			admin_email TEXT NOT NULL,
			borrower_name TEXT NOT NULL,
			borrower_national_id TEXT NOT NULL,
			loaned_at TEXT NOT NULL,
			due_at TEXT NOT NULL,
			status TEXT NOT NULL,
			returned_at TEXT,
			created_at TEXT NOT NULL
		)`, tablePrefix),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%sloans_admin
			ON %sloans (admin_id, created_at DESC)`, tablePrefix, tablePrefix),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%sloans_status
			ON %sloans (status, created_at DESC)`, tablePrefix, tablePrefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sfavorites (
			user_id TEXT NOT NULL,
			book_id TEXT NOT NULL,
			favorited_at TEXT NOT NULL,
			PRIMARY KEY (user_id, book_id)
		)`, tablePrefix),
	}
}

func (s *Store) booksTable() string {
	return s.tablePrefix + defaultBooksTableName
}

func (s *Store) loansTable() string {
	return s.tablePrefix + defaultLoansTableName
}

func (s *Store) favoritesTable() string {
	return s.tablePrefix + defaultFavoritesTableName
}

// now returns the current UTC time, the engine's reference for every stored
// timestamp.
func now() time.Time {
	return time.Now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}

// toSQL renders a goqu statement to SQL with placeholder arguments.
func (s *Store) toSQL(ctx context.Context, stmt sqlBuilder) (string, []any, error) {
	sqlQuery, args, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr)

		return "", nil, errors.Join(biblioteca.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, args, nil
}

// executeQuery executes the SQL query on the given runner with timing and
// debug logging. Busy and locked driver errors surface as conflicts.
func (s *Store) executeQuery(ctx context.Context, runner sqlRunner, operation string, sqlQuery string, args []any) (*sql.Rows, error) {
	start := time.Now()
	rows, queryErr := runner.QueryContext(ctx, sqlQuery, args...)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, operation, duration)

	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, joinStageError(biblioteca.ErrQueryingStoreFailed, queryErr)
	}

	return rows, nil
}

// executeStatement executes the SQL statement on the given runner and returns
// the number of affected rows.
func (s *Store) executeStatement(ctx context.Context, runner sqlRunner, operation string, sqlQuery string, args []any) (int64, error) {
	start := time.Now()
	result, execErr := runner.ExecContext(ctx, sqlQuery, args...)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, operation, duration)

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)

		return 0, joinStageError(biblioteca.ErrExecutingStoreFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)

		return 0, errors.Join(biblioteca.ErrExecutingStoreFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (s *Store) closeRows(ctx context.Context, rows *sql.Rows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// finishRows reports an error the driver deferred until after iteration.
func (s *Store) finishRows(ctx context.Context, rows *sql.Rows) error {
	if iterErr := rows.Err(); iterErr != nil {
		s.logError(ctx, logMsgRowsIterationFailed, iterErr)

		return errors.Join(biblioteca.ErrQueryingStoreFailed, iterErr)
	}

	return nil
}

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
// Placeholder arguments are left out of the log record, they can carry
// borrower data.
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
