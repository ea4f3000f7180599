package migration

import (
	"context"

	"tidyframe/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.1.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every statement is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSavedSessionsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create saved_sessions table")
	}

	if err := r.addSavedSessionsColumns(ctx, db); err != nil {
		return errors.Wrap(err, "failed to add saved_sessions columns")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createSavedSessionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS saved_sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			filename VARCHAR(255) UNIQUE NOT NULL,
			source_name VARCHAR(255) NOT NULL DEFAULT '',
			row_count INTEGER NOT NULL DEFAULT 0,
			column_count INTEGER NOT NULL DEFAULT 0,
			auto_clean_config JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

// addSavedSessionsColumns brings 1.0 tables up to the current shape
func (r *MigrationRunner) addSavedSessionsColumns(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'saved_sessions' AND column_name = 'size_bytes'
			) THEN
				ALTER TABLE saved_sessions ADD COLUMN size_bytes BIGINT NOT NULL DEFAULT 0;
			END IF;

			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'saved_sessions' AND column_name = 'checksum'
			) THEN
				ALTER TABLE saved_sessions ADD COLUMN checksum VARCHAR(64);
			END IF;
		END $$;
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_saved_sessions_updated_at ON saved_sessions(updated_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_saved_sessions_source_name ON saved_sessions(source_name)",
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return errors.Wrapf(err, "failed to create index: %s", indexSQL)
		}
	}
	return nil
}
