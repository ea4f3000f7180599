package app

import (
	"fmt"
	"strings"
	"time"

	"tidyframe/adapters/sqlsource"
	"tidyframe/domain/core"
	"tidyframe/internal/session"
)

// UndoRedoStatus drives the client's undo and redo buttons
type UndoRedoStatus struct {
	UndoEnabled bool `json:"undo_enabled"`
	RedoEnabled bool `json:"redo_enabled"`
}

// TableView is the response shared by every endpoint that changes what the table shows
type TableView struct {
	SessionID    core.SessionID `json:"-"`
	TableHTML    string         `json:"table_html"`
	TotalRows    int            `json:"total_rows"`
	TotalColumns int            `json:"total_columns"`
	Columns      []string       `json:"columns"`
	UndoRedo     UndoRedoStatus `json:"undo_redo_status"`
	Message      string         `json:"message"`
	DFModified   bool           `json:"df_modified"`

	SearchApplied    bool   `json:"search_applied,omitempty"`
	SearchCleared    bool   `json:"search_cleared,omitempty"`
	FilteredRowCount *int   `json:"filtered_row_count,omitempty"`
	OriginalRowCount *int   `json:"original_row_count,omitempty"`
	SearchTerm       string `json:"search_term_applied,omitempty"`
	SearchColumn     string `json:"search_column_applied,omitempty"`
}

// HistoryEntry describes one undoable operation
type HistoryEntry struct {
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	Change    string    `json:"change"`
	At        time.Time `json:"applied_at"`
}

// SaveResult is returned after a session is written to the saved-sessions store
type SaveResult struct {
	SavedFilename string `json:"saved_filename"`
	Message       string `json:"message"`
}

func searchMessage(s *session.SearchState) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("Showing %d of %d rows where '%s' contains '%s'.",
		s.FilteredRowCount(), s.OriginalRowCount, s.Column, s.Term)
}

// querySourceName labels a query-loaded session with its source and the start of the query
func querySourceName(src sqlsource.Source, query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if r := []rune(query); len(r) > 50 {
		query = string(r[:50]) + "..."
	}
	return fmt.Sprintf("%s (Query: %s)", src.Describe(), query)
}
