// Package sqliteengine provides a SQLite implementation of the catalog
// storage contracts for single-process deployments: CLI tools, desktop
// installs, and test suites that should not require a database server.
//
// Key characteristics:
//   - Runs over a single database/sql handle with the mattn/go-sqlite3
//     driver, file-backed or in-memory
//   - Timestamps are assigned in Go and stored as fixed-width UTC text, so
//     lexicographic column order matches chronological order
//   - Author lists, ISBN lists, and the descriptive metadata document are
//     stored as JSON text
//   - SQLITE_BUSY and SQLITE_LOCKED surface as errors matching
//     biblioteca.ErrConflict, so the shared retry helper works unchanged
//   - No backend search: catalog search falls back to client-side filtering
//
// Usage:
//
//	db, _ := sql.Open("sqlite3", "file:catalog.db?_busy_timeout=5000")
//	for _, stmt := range sqliteengine.SchemaStatements("") {
//		db.Exec(stmt)
//	}
//	store, _ := sqliteengine.NewStore(db, sqliteengine.WithLogger(logger))
//
//	book, err := store.GetBook(ctx, id)
package sqliteengine
