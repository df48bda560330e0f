// Package postgres opens the service database handle.
package postgres

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"screening/internal/platform/config"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// Open connects to Postgres and verifies the connection.
// Returns nil, nil when no URL is configured.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	db, err := sqlx.Open(DriverName, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
