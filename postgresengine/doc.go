// Package postgresengine provides the PostgreSQL implementation of the
// catalog storage interfaces.
//
// This package stores book records with their inventory counters, loan
// records, and favorites in PostgreSQL, supporting multiple database
// adapters (pgx, sql.DB, sqlx) with serializable transactions for the
// inventory-mutating operations.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Serializable inventory transactions with conflict detection mapped
//     onto biblioteca.ErrConflict for the retry layer
//   - Backend-pushed catalog search (title and ISBN substring matching)
//   - Optional read-replica routing driven by the consistency level in the
//     request context (PGX adapter only)
//   - Configurable table prefix and pluggable logging, metrics, and tracing
//
// Usage examples:
//
//	// Basic usage
//	pool, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewStoreFromPGXPool(pool)
//
//	// With a table prefix and operational logging
//	store, _ := postgresengine.NewStoreFromPGXPool(
//		pool,
//		postgresengine.WithTablePrefix("catalog_"),
//		postgresengine.WithLogger(logger),
//	)
//
//	// With a read replica for eventually consistent reads
//	store, _ := postgresengine.NewStoreFromPGXPoolAndReplica(pool, replicaPool)
//	books, _ := store.ListBooks(biblioteca.WithEventualConsistency(ctx), 50)
package postgresengine
