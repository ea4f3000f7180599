package postgres

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
)

// savedSessionRepository implements SavedSessionRepository for PostgreSQL
type savedSessionRepository struct {
	db *sqlx.DB
}

// NewSavedSessionRepository creates a new PostgreSQL saved-session repository
func NewSavedSessionRepository(db *sqlx.DB) ports.SavedSessionRepository {
	return &savedSessionRepository{db: db}
}

const savedSessionColumns = `id, filename, source_name, row_count, column_count, size_bytes, checksum,
	auto_clean_config, created_at, updated_at`

const savedSessionSelect = `SELECT id, filename, source_name, row_count, column_count, size_bytes,
	COALESCE(checksum, '') AS checksum, COALESCE(auto_clean_config, '{}'::jsonb) AS auto_clean_config,
	created_at, updated_at
	FROM saved_sessions`

// Upsert inserts a row or replaces the one with the same filename, keeping its id and created_at
func (r *savedSessionRepository) Upsert(ctx context.Context, s *ports.SavedSession) error {
	now := time.Now()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	var config interface{}
	if len(s.AutoCleanConfig) > 0 {
		config = string(s.AutoCleanConfig)
	}

	query := `INSERT INTO saved_sessions (` + savedSessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
		ON CONFLICT (filename) DO UPDATE SET
			source_name = EXCLUDED.source_name,
			row_count = EXCLUDED.row_count,
			column_count = EXCLUDED.column_count,
			size_bytes = EXCLUDED.size_bytes,
			checksum = EXCLUDED.checksum,
			auto_clean_config = EXCLUDED.auto_clean_config,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		s.ID, s.Filename, s.SourceName, s.RowCount, s.ColumnCount, s.SizeBytes, s.Checksum,
		config, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return apperrors.DatabaseError(fmt.Sprintf("failed to save session metadata for %s", s.Filename), err)
	}
	return nil
}

// GetByFilename retrieves a saved session by filename
func (r *savedSessionRepository) GetByFilename(ctx context.Context, filename string) (*ports.SavedSession, error) {
	var s ports.SavedSession
	err := r.db.GetContext(ctx, &s, savedSessionSelect+` WHERE filename = $1`, filename)
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
		query += " LIMIT $1"
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_sessions WHERE filename = $1`, filename)
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
