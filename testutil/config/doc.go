// Package config provides PostgreSQL database configuration for catalog
// store testing.
//
// This package contains factory functions for creating database connections
// using the store's supported PostgreSQL adapters (pgx.Pool, sql.DB, sqlx.DB)
// with pre-configured test DSNs, plus the schema statements the integration
// suites need.
//
// All settings can be overridden through environment variables, optionally
// loaded from a .env file, so the same suite runs against local containers
// and CI databases without code changes.
package config
