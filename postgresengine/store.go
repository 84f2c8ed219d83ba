package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/ramonpiresone/biblioteca"
	"github.com/ramonpiresone/biblioteca/postgresengine/internal/adapters"
)

const (
	defaultBooksTableName     = "books"
	defaultLoansTableName     = "loans"
	defaultFavoritesTableName = "favorites"

	dialectPostgres = "postgres"
	castTimestamp   = "?::timestamp with time zone"
	castJsonb       = "?::jsonb"
	exprNow         = "now()"

	logMsgDBQueryFailed         = "database query execution failed"
	logMsgDBExecFailed          = "database statement execution failed"
	logMsgCloseRowsFailed       = "failed to close database rows"
	logMsgScanRowFailed         = "failed to scan database row"
	logMsgRowsIterationFailed   = "failed reading database rows"
	logMsgRowsAffectedFailed    = "failed to get rows affected count"
	logMsgBuildQueryFailed      = "failed to build sql query"
	logMsgEncodeMetadataFailed  = "failed to encode book metadata document"
	logMsgDecodeMetadataFailed  = "failed to decode book metadata document"
	logMsgBeginTxFailed         = "failed to begin serializable transaction"
	logMsgCommitFailed          = "failed to commit transaction"
	logMsgRollbackFailed        = "failed to roll back transaction"
	logMsgTransactionConflict   = "transaction serialization conflict detected"
	logMsgSQLExecuted           = "executed sql for: "
	logMsgOperation             = "catalog store operation: "
	logMsgBookFetched           = "book fetched"
	logMsgBooksFetched          = "books fetched"
	logMsgBooksListed           = "books listed"
	logMsgBookUpserted          = "book upserted"
	logMsgBookTouched           = "book access time refreshed"
	logMsgLoanFetched           = "loan fetched"
	logMsgLoansListed           = "loans listed"
	logMsgFavoriteSaved         = "favorite saved"
	logMsgFavoriteDeleted       = "favorite removed"
	logMsgFavoritesListed       = "favorites listed"
	logMsgBooksSearched         = "books searched"
	logMsgTransactionCommitted  = "transaction committed"

	logAttrError        = "error"
	logAttrQuery        = "query"
	logAttrDurationMS   = "duration_ms"
	logAttrOperation    = "operation"
	logAttrBookID       = "book_id"
	logAttrLoanID       = "loan_id"
	logAttrUserID       = "user_id"
	logAttrAdminID      = "admin_id"
	logAttrCount        = "count"
	logAttrRowsAffected = "rows_affected"

	operationGetBook          = "get_book"
	operationGetBooksByIDs    = "get_books_by_ids"
	operationListBooks        = "list_books"
	operationPutBook          = "put_book"
	operationTouchBook        = "touch_book"
	operationUpdateAvailable  = "update_available_quantity"
	operationSearchBooks      = "search_books"
	operationGetLoan          = "get_loan"
	operationListLoans        = "list_loans"
	operationListLoansByAdmin = "list_loans_by_admin"
	operationCreateLoan       = "create_loan"
	operationMarkLoanReturned = "mark_loan_returned"
	operationPutFavorite      = "put_favorite"
	operationDeleteFavorite   = "delete_favorite"
	operationListFavorites    = "list_favorites"
	operationTransaction      = "transaction"

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

type sqlQueryString = string

// sqlRunner is the common query surface of the database adapter and an open
// transaction, so the builders and scanners serve both paths.
type sqlRunner interface {
	Query(ctx context.Context, query string) (adapters.DBRows, error)
	Exec(ctx context.Context, query string) (adapters.DBResult, error)
}

// sqlBuilder is the part of a goqu dataset the store needs: rendering the
// statement to a fully interpolated SQL string.
type sqlBuilder interface {
	ToSQL() (sql string, params []interface{}, err error)
}

// Store is the PostgreSQL implementation of the catalog storage interfaces:
// book records with their inventory counters, loan records, favorites, a
// backend-pushed search, and serializable inventory transactions.
type Store struct {
	db               adapters.DBAdapter
	tablePrefix      string
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

var (
	_ biblioteca.RegistryStore      = (*Store)(nil)
	_ biblioteca.LoanReader         = (*Store)(nil)
	_ biblioteca.FavoriteStore      = (*Store)(nil)
	_ biblioteca.BookSearcher       = (*Store)(nil)
	_ biblioteca.TransactionalStore = (*Store)(nil)
)

// NewStoreFromPGXPool creates a new Store using a pgx pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, biblioteca.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolAndReplica creates a new Store using a primary pgx pool
// plus a replica pool. Reads whose context carries
// biblioteca.EventualConsistency are served by the replica; all writes and
// transactions stay on the primary.
func NewStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil || replica == nil {
		return nil, biblioteca.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, biblioteca.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, biblioteca.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{db: db}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
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

// toSQL renders a goqu statement to its fully interpolated SQL string.
func (s *Store) toSQL(ctx context.Context, stmt sqlBuilder) (sqlQueryString, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr)

		return "", errors.Join(biblioteca.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// executeQuery executes the SQL query on the given runner with timing and
// debug logging.
func (s *Store) executeQuery(ctx context.Context, runner sqlRunner, operation string, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := runner.Query(ctx, sqlQuery)
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
func (s *Store) executeStatement(ctx context.Context, runner sqlRunner, operation string, sqlQuery string) (int64, error) {
	start := time.Now()
	result, execErr := runner.Exec(ctx, sqlQuery)
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
func (s *Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// finishRows reports an error the driver deferred until after iteration.
func (s *Store) finishRows(ctx context.Context, rows adapters.DBRows) error {
	if iterErr := rows.Err(); iterErr != nil {
		s.logError(ctx, logMsgRowsIterationFailed, iterErr)

		return errors.Join(biblioteca.ErrQueryingStoreFailed, iterErr)
	}

	return nil
}
