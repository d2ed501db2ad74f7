// Package storage provides the database boundary: connection setup, the
// read-only executor for vetted SQL, and the chitalishte repository.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	// Database drivers. Postgres serves production, SQLite development.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// OpenConfig holds connection settings for Open.
type OpenConfig struct {
	Driver          string // sqlite or postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open creates a database handle for the configured driver.
func Open(cfg OpenConfig) (*sql.DB, error) {
	driver := cfg.Driver
	switch driver {
	case "postgres":
	case "sqlite":
		driver = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}
