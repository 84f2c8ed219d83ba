package config

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// SQLDBConfig creates a configured *sql.DB for the test database.
//
// Opening does not dial the database, callers decide whether an unreachable
// server is fatal or a reason to skip.
func SQLDBConfig() *sql.DB {
	defaultMaxOpenConnections := getEnvAsInt("POSTGRES_MAX_CONNS", 50)
	defaultMaxIdleConnections := getEnvAsInt("POSTGRES_MIN_CONNS", 10)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sql.Open("postgres", PostgresDSN())
	if err != nil {
		log.Fatal("Failed to open database connection, error: ", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	return db
}
