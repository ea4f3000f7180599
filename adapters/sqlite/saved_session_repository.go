package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tidyframe/domain/core"
	apperrors "tidyframe/internal/errors"
	"tidyframe/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Schema creates the saved_sessions table. The config column is a BLOB so it scans back
// into json.RawMessage.
const Schema = `
CREATE TABLE IF NOT EXISTS saved_sessions (
	id TEXT PRIMARY KEY,
	filename TEXT UNIQUE NOT NULL,
	source_name TEXT NOT NULL DEFAULT '',
	row_count INTEGER NOT NULL DEFAULT 0,
	column_count INTEGER NOT NULL DEFAULT 0,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	checksum TEXT NOT NULL DEFAULT '',
	auto_clean_config BLOB,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saved_sessions_updated_at ON saved_sessions(updated_at DESC);
`

// savedSessionRepository implements SavedSessionRepository on a local SQLite file
type savedSessionRepository struct {
	db *sqlx.DB
}

// Open connects to the SQLite file at path and applies Schema
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to open sqlite database", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, apperrors.DatabaseError("failed to create saved_sessions table", err)
	}
	return db, nil
}

// NewSavedSessionRepository creates a SQLite saved-session repository. db must already carry Schema.
func NewSavedSessionRepository(db *sqlx.DB) ports.SavedSessionRepository {
	return &savedSessionRepository{db: db}
}

const savedSessionSelect = `SELECT id, filename, source_name, row_count, column_count, size_bytes,
	checksum, COALESCE(auto_clean_config, X'7B7D') AS auto_clean_config, created_at, updated_at
	FROM saved_sessions`

// Upsert inserts a row or replaces the one with the same filename, keeping its id and created_at
func (r *savedSessionRepository) Upsert(ctx context.Context, s *ports.SavedSession) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var existing struct {
		ID        uuid.UUID `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err = tx.GetContext(ctx, &existing, `SELECT id, created_at FROM saved_sessions WHERE filename = ?`, s.Filename)
	switch {
	case err == nil:
		s.ID, s.CreatedAt = existing.ID, existing.CreatedAt
	case errors.Is(err, sql.ErrNoRows):
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now().UTC()
		}
	default:
		return apperrors.DatabaseError("failed to look up saved session", err)
	}
	s.UpdatedAt = time.Now().UTC()

	var config interface{}
	if len(s.AutoCleanConfig) > 0 {
		config = []byte(s.AutoCleanConfig)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO saved_sessions
		(id, filename, source_name, row_count, column_count, size_bytes, checksum, auto_clean_config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (filename) DO UPDATE SET
			source_name = excluded.source_name,
			row_count = excluded.row_count,
			column_count = excluded.column_count,
			size_bytes = excluded.size_bytes,
			checksum = excluded.checksum,
			auto_clean_config = excluded.auto_clean_config,
			updated_at = excluded.updated_at`,
		s.ID.String(), s.Filename, s.SourceName, s.RowCount, s.ColumnCount, s.SizeBytes, s.Checksum,
		config, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return apperrors.DatabaseError(fmt.Sprintf("failed to save session metadata for %s", s.Filename), err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.DatabaseError("failed to commit saved session", err)
	}
	return nil
}

// GetByFilename retrieves a saved session by filename
func (r *savedSessionRepository) GetByFilename(ctx context.Context, filename string) (*ports.SavedSession, error) {
	var s ports.SavedSession
	err := r.db.GetContext(ctx, &s, savedSessionSelect+` WHERE filename = ?`, filename)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrSavedFileNotFound, filename)
		}
		return nil, apperrors.DatabaseError("failed to get saved session", err)
	}
	return &s, nil
}

// List returns saved sessions, most recently updated first
func (r *savedSessionRepository) List(ctx context.Context, limit int) ([]*ports.SavedSession, error) {
	query := savedSessionSelect + ` ORDER BY updated_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var sessions []*ports.SavedSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, apperrors.DatabaseError("failed to list saved sessions", err)
	}
	return sessions, nil
}

// Delete removes a saved session row
func (r *savedSessionRepository) Delete(ctx context.Context, filename string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_sessions WHERE filename = ?`, filename)
	if err != nil {
		return apperrors.DatabaseError("failed to delete saved session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.DatabaseError("failed to delete saved session", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrSavedFileNotFound, filename)
	}
	return nil
}
