// Package database opens the SQL pool used by the wrapped-key repositories and carries
// transactions through context.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Config holds database configuration settings. Driver is a database/sql driver name
// ("postgres" or "mysql").
type Config struct {
	Driver             string
	ConnectionString   string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// Connect opens the pool and pings it. The pool is closed again if the ping fails.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn, err := normalizeDSN(cfg.Driver, cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// normalizeDSN makes MySQL return DATETIME columns as UTC time.Time values, which the
// wrapped_keys created_at column is scanned into.
func normalizeDSN(driver, dsn string) (string, error) {
	if driver != "mysql" {
		return dsn, nil
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql connection string: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
