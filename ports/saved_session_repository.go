package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SavedSession is the metadata row for a dataset saved to disk
type SavedSession struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	Filename        string          `db:"filename" json:"filename"`
	SourceName      string          `db:"source_name" json:"source_name"`
	RowCount        int             `db:"row_count" json:"rows"`
	ColumnCount     int             `db:"column_count" json:"columns"`
	SizeBytes       int64           `db:"size_bytes" json:"size_bytes"`
	Checksum        string          `db:"checksum" json:"checksum"`
	AutoCleanConfig json.RawMessage `db:"auto_clean_config" json:"auto_clean_config,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// SavedSessionRepository stores saved-session metadata keyed by filename
type SavedSessionRepository interface {
	// Upsert inserts a row or replaces the one with the same filename
	Upsert(ctx context.Context, s *SavedSession) error

	// GetByFilename returns core.ErrSavedFileNotFound when no row matches
	GetByFilename(ctx context.Context, filename string) (*SavedSession, error)

	// List returns saved sessions, most recently updated first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*SavedSession, error)

	// Delete removes the row; deleting a missing row returns core.ErrSavedFileNotFound
	Delete(ctx context.Context, filename string) error
}
