package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the deliveries table. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS deliveries (
		id               BIGSERIAL PRIMARY KEY,
		supplier         TEXT NOT NULL CHECK (btrim(supplier) <> ''),
		payer            TEXT NOT NULL CHECK (btrim(payer) <> ''),
		invoice_number   TEXT NOT NULL CHECK (btrim(invoice_number) <> ''),
		pickup_address   TEXT,
		delivery_address TEXT,
		cargo_info       TEXT,
		author_name      TEXT NOT NULL CHECK (btrim(author_name) <> ''),
		driver_id        BIGINT,
		driver_name      TEXT,
		status           TEXT NOT NULL DEFAULT 'draft'
			CHECK (status IN ('draft', 'assigned', 'in_progress', 'completed', 'cancelled')),
		work_started_at  TIMESTAMPTZ,
		completed_at     TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT deliveries_driver_pair CHECK ((driver_id IS NULL) = (driver_name IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries (status)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_driver ON deliveries (driver_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_completed_at ON deliveries (completed_at DESC) WHERE status = 'completed'`,
}

// EnsureSchema applies the schema in one transaction.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
