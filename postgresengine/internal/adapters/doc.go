// Package adapters provides database adapter implementations for the
// PostgreSQL catalog store.
//
// This package implements the adapter pattern to support multiple PostgreSQL
// database libraries: pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide
// equivalent functionality through a common DBAdapter interface, including
// serializable transactions and, for the pgx adapter, read routing to an
// optional replica pool driven by the consistency level carried in the
// context.
//
// The adapters handle the specifics of each database library while presenting
// a unified interface for query execution, statement execution, and
// transaction control.
package adapters
