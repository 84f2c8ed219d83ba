package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/ramonpiresone/biblioteca/postgresengine"
	"github.com/ramonpiresone/biblioteca/testutil/config"
)

// Wrapper interface to abstract over different store adapter types
type Wrapper interface {
	GetStore() *postgresengine.Store
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool        *pgxpool.Pool
	replicaPool *pgxpool.Pool
	store       *postgresengine.Store
	tablePrefix string
}

func (w *PGXPoolWrapper) GetStore() *postgresengine.Store {
	return w.store
}

func (w *PGXPoolWrapper) Close() {
	if w.replicaPool != nil {
		w.replicaPool.Close()
	}

	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db          *sql.DB
	store       *postgresengine.Store
	tablePrefix string
}

func (w *SQLDBWrapper) GetStore() *postgresengine.Store {
	return w.store
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db          *sqlx.DB
	store       *postgresengine.Store
	tablePrefix string
}

func (w *SQLXWrapper) GetStore() *postgresengine.Store {
	return w.store
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the appropriate wrapper based on the
// ADAPTER_TYPE environment variable, skipping the test when the database is
// not reachable.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	return createWrapperWithTestConfig(t, "", options...)
}

// CreateWrapperWithTablePrefix creates a wrapper whose store reads and writes
// tables carrying the given prefix.
func CreateWrapperWithTablePrefix(t testing.TB, tablePrefix string, options ...postgresengine.Option) Wrapper {
	return createWrapperWithTestConfig(t, tablePrefix, options...)
}

// CreateWrapperWithReplicaConfig creates a pgx wrapper whose store routes
// eventually consistent reads to the replica pool. Replica routing is a pgx
// feature, so other adapter types skip.
func CreateWrapperWithReplicaConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	if config.AdapterType() != config.AdapterPGXPool {
		t.Skip("replica routing is only supported by the pgx adapter")
	}

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PGXPoolConfig())
	assert.NoError(t, err, "error connecting to DB pool in test setup")
	skipUnlessPostgresIsUp(t, connPool.Ping(context.Background()), connPool.Close)

	replicaPool, err := pgxpool.NewWithConfig(context.Background(), config.PGXPoolReplicaConfig())
	assert.NoError(t, err, "error connecting to replica DB pool in test setup")

	store, err := postgresengine.NewStoreFromPGXPoolAndReplica(connPool, replicaPool, options...)
	assert.NoError(t, err, "error creating catalog store")

	wrapper := &PGXPoolWrapper{pool: connPool, replicaPool: replicaPool, store: store}
	ensureSchema(t, wrapper)

	return wrapper
}

// TryCreateStoreWithTablePrefix tries to create a catalog store with the given
// table prefix and returns the error (for testing error cases).
func TryCreateStoreWithTablePrefix(t testing.TB, tablePrefix string) error {
	switch adapterType := config.AdapterType(); adapterType {
	case config.AdapterPGXPool:
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PGXPoolConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")
		defer connPool.Close()

		_, err = postgresengine.NewStoreFromPGXPool(connPool, postgresengine.WithTablePrefix(tablePrefix))

		return err

	case config.AdapterSQLDB:
		db := config.SQLDBConfig()
		defer func(db *sql.DB) {
			_ = db.Close() // makes no sense to handle this
		}(db)

		_, err := postgresengine.NewStoreFromSQLDB(db, postgresengine.WithTablePrefix(tablePrefix))

		return err

	case config.AdapterSQLX:
		db := config.SQLXConfig()
		defer func(db *sqlx.DB) {
			_ = db.Close() // makes no sense to handle this
		}(db)

		_, err := postgresengine.NewStoreFromSQLX(db, postgresengine.WithTablePrefix(tablePrefix))

		return err

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported adapter type from env: %s", adapterType))
	}
}

// createWrapperWithTestConfig is the internal function that handles both
// default and prefixed table names.
func createWrapperWithTestConfig(t testing.TB, tablePrefix string, options ...postgresengine.Option) Wrapper {
	if tablePrefix != "" {
		options = append([]postgresengine.Option{postgresengine.WithTablePrefix(tablePrefix)}, options...)
	}

	switch adapterType := config.AdapterType(); adapterType {
	case config.AdapterPGXPool:
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PGXPoolConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")
		skipUnlessPostgresIsUp(t, connPool.Ping(context.Background()), connPool.Close)

		store, err := postgresengine.NewStoreFromPGXPool(connPool, options...)
		assert.NoError(t, err, "error creating catalog store")

		wrapper := &PGXPoolWrapper{pool: connPool, store: store, tablePrefix: tablePrefix}
		ensureSchema(t, wrapper)

		return wrapper

	case config.AdapterSQLDB:
		db := config.SQLDBConfig()
		skipUnlessPostgresIsUp(t, db.PingContext(context.Background()), func() { _ = db.Close() })

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		assert.NoError(t, err, "error creating catalog store")

		wrapper := &SQLDBWrapper{db: db, store: store, tablePrefix: tablePrefix}
		ensureSchema(t, wrapper)

		return wrapper

	case config.AdapterSQLX:
		db := config.SQLXConfig()
		skipUnlessPostgresIsUp(t, db.PingContext(context.Background()), func() { _ = db.Close() })

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		assert.NoError(t, err, "error creating catalog store")

		wrapper := &SQLXWrapper{db: db, store: store, tablePrefix: tablePrefix}
		ensureSchema(t, wrapper)

		return wrapper

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported adapter type from env: %s", adapterType))
	}
}

func skipUnlessPostgresIsUp(t testing.TB, pingErr error, closeFn func()) {
	if pingErr == nil {
		return
	}

	closeFn()
	t.Skipf("postgres is not reachable, skipping integration test: %v", pingErr)
}

func ensureSchema(t testing.TB, wrapper Wrapper) {
	execStatements(t, wrapper, config.SchemaStatements(prefixOf(wrapper)), "error creating the catalog schema")
}

// CleanUp empties the catalog tables for the given wrapper
func CleanUp(t testing.TB, wrapper Wrapper) {
	execStatements(t, wrapper, config.TruncateStatements(prefixOf(wrapper)), "error cleaning up the catalog tables")
}

// CountRowsInTable returns the number of rows in the given table for the
// given wrapper.
func CountRowsInTable(t testing.TB, wrapper Wrapper, table string) int {
	var cnt int
	var err error

	query := fmt.Sprintf(`SELECT count(*) FROM %s`, table)

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		row := w.pool.QueryRow(context.Background(), query)
		err = row.Scan(&cnt)

	case *SQLDBWrapper:
		row := w.db.QueryRow(query)
		err = row.Scan(&cnt)

	case *SQLXWrapper:
		row := w.db.QueryRow(query)
		err = row.Scan(&cnt)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	assert.NoError(t, err, "error counting table rows")

	return cnt
}

func prefixOf(wrapper Wrapper) string {
	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		return w.tablePrefix

	case *SQLDBWrapper:
		return w.tablePrefix

	case *SQLXWrapper:
		return w.tablePrefix

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}
}

func execStatements(t testing.TB, wrapper Wrapper, statements []string, errMsg string) {
	for _, statement := range statements {
		switch w := wrapper.(type) {
		case *PGXPoolWrapper:
			_, err := w.pool.Exec(context.Background(), statement)
			assert.NoError(t, err, errMsg)

		case *SQLDBWrapper:
			_, err := w.db.Exec(statement)
			assert.NoError(t, err, errMsg)

		case *SQLXWrapper:
			_, err := w.db.Exec(statement)
			assert.NoError(t, err, errMsg)

		default:
			panic(fmt.Sprintf("unsupported wrapper type: %T", w))
		}
	}
}
