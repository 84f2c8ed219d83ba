package config

import (
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXPoolConfig creates a pgxpool.Config for the test database.
func PGXPoolConfig() *pgxpool.Config {
	return pgxPoolConfigFor(PostgresDSN())
}

// PGXPoolReplicaConfig creates a pgxpool.Config for the replica test database.
func PGXPoolReplicaConfig() *pgxpool.Config {
	return pgxPoolConfigFor(PostgresReplicaDSN())
}

func pgxPoolConfigFor(dsn string) *pgxpool.Config {
	defaultMaxConnections := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 50))
	defaultMinConnections := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 10))
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatal("Failed to create a config, error: ", err)
	}

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig
}
