// Package schema owns the targeting tables.
package schema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var ddl string

// Tables lists every table in dependency order, for truncation in tests.
var Tables = []string{
	"outbox",
	"invitation_batches",
	"invitation_parameters",
	"clinics",
	"residents",
	"area_units",
}

// EnsureSchema creates the tables if they do not exist. It is idempotent;
// deployments with managed migrations can skip it.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure targeting schema: %w", err)
	}
	return nil
}
