// Package postgreswrapper provides test utilities for abstracting over
// different PostgreSQL database adapters.
//
// This package enables testing of the catalog store implementation across
// multiple database drivers (pgx, sql.DB, sqlx.DB) using a common Wrapper
// interface. The specific adapter type is determined by the ADAPTER_TYPE
// environment variable, allowing the same test suite to run against different
// database implementations.
//
// Key features:
//   - Unified interface for different PostgreSQL adapters
//   - Automatic schema creation and cleanup between test cases
//   - Skips tests instead of failing when no database is reachable
//   - Environment-based adapter selection for CI/CD flexibility
//
// Usage:
//
//	// Create wrapper for testing
//	wrapper := CreateWrapperWithTestConfig(t)
//	defer wrapper.Close()
//
//	// Clean up between tests
//	CleanUp(t, wrapper)
//
//	// Use the catalog store
//	store := wrapper.GetStore()
package postgreswrapper
