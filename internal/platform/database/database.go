// Package database opens and tunes the postgres connection pool every
// kraken deployment runs its storage layer against: validate the DSN,
// open, ping with a timeout, apply pool sizing from internal/config.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PoolConfig holds the subset of internal/config.DatabaseConfig that
// tunes the *sql.DB pool, kept decoupled from internal/config to avoid an
// import cycle between platform and config.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open establishes a PostgreSQL connection using dsn and verifies
// connectivity with a 10-second ping before returning. The caller must
// Close the returned *sql.DB.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
