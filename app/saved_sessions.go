package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"tidyframe/adapters/excel"
	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	"tidyframe/internal/autoclean"
	"tidyframe/ports"

	"github.com/dustin/go-humanize"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SavedName turns a requested filename into a store key. An empty request derives a name from
// the source file plus a short unique suffix.
func SavedName(requested, sourceName string) string {
	name := strings.TrimSpace(requested)
	if name == "" {
		stem := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
		name = fmt.Sprintf("%s_%s", stem, core.NewID().Short(8))
	} else {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "_-")
	if name == "" {
		name = "session_" + core.NewID().Short(8)
	}
	return name
}

// Save writes the current frame to the saved-sessions store and records its metadata
func (s *CleaningService) Save(ctx context.Context, id core.SessionID, requested string) (SaveResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return SaveResult{}, err
	}
	st := sess.State()
	if st.Frame == nil {
		return SaveResult{}, core.ErrNoData
	}

	name := SavedName(requested, st.SourceName)
	blob, err := s.frames.Save(ctx, name, st.Frame)
	if err != nil {
		return SaveResult{}, err
	}
	cfg, err := json.Marshal(st.Config)
	if err != nil {
		return SaveResult{}, err
	}
	record := &ports.SavedSession{
		Filename:        name,
		SourceName:      st.SourceName,
		RowCount:        st.Frame.NumRows(),
		ColumnCount:     st.Frame.NumCols(),
		SizeBytes:       blob.Size,
		Checksum:        blob.Checksum.String(),
		AutoCleanConfig: cfg,
	}
	if err := s.saved.Upsert(ctx, record); err != nil {
		return SaveResult{}, err
	}
	sess.SetSavedFilename(name)

	log.Printf("[CleaningService] Session %s saved as %s (%s, checksum %s)", id, name, humanize.Bytes(uint64(blob.Size)), blob.Checksum.Short())
	return SaveResult{
		SavedFilename: name,
		Message:       fmt.Sprintf("Session saved as '%s' (%s).", name, humanize.Bytes(uint64(blob.Size))),
	}, nil
}

// ListSaved returns saved-session metadata, newest first
func (s *CleaningService) ListSaved(ctx context.Context, limit int) ([]*ports.SavedSession, error) {
	return s.saved.List(ctx, limit)
}

// OpenSaved loads a saved dataset into a fresh session with its saved auto-clean config.
// The previous session, if any, is torn down.
func (s *CleaningService) OpenSaved(ctx context.Context, previous core.SessionID, filename string) (TableView, error) {
	f, err := s.frames.Load(ctx, filename)
	if err != nil {
		return TableView{}, err
	}

	sourceName := filename
	cfg := autoclean.DefaultConfig()
	meta, err := s.saved.GetByFilename(ctx, filename)
	switch {
	case err == nil:
		sourceName = meta.SourceName
		cfg = autoclean.Load(meta.AutoCleanConfig)
	case errors.Is(err, core.ErrSavedFileNotFound):
		log.Printf("[CleaningService] No metadata for saved file %s, using defaults", filename)
	default:
		return TableView{}, err
	}

	if previous != "" {
		s.sessions.Delete(previous)
	}
	sess := s.sessions.Create(f, sourceName)
	sess.SetConfig(cfg)
	sess.SetSavedFilename(filename)
	return s.tableView(sess.State(), fmt.Sprintf("Opened saved session '%s'.", filename))
}

// DeleteSaved removes a saved dataset and its metadata
func (s *CleaningService) DeleteSaved(ctx context.Context, filename string) error {
	exists, err := s.frames.Exists(ctx, filename)
	if err != nil {
		return err
	}
	metaErr := s.saved.Delete(ctx, filename)
	if metaErr != nil && !errors.Is(metaErr, core.ErrSavedFileNotFound) {
		return metaErr
	}
	if !exists && metaErr != nil {
		return metaErr
	}
	return s.frames.Delete(ctx, filename)
}

// PurgeSaved drops saved files older than retention and any metadata left without a file
func (s *CleaningService) PurgeSaved(ctx context.Context, retention time.Duration) (int, error) {
	removed, err := s.frames.CleanupExpired(ctx, retention)
	if err != nil {
		return removed, err
	}
	rows, err := s.saved.List(ctx, 0)
	if err != nil {
		return removed, err
	}
	for _, row := range rows {
		ok, err := s.frames.Exists(ctx, row.Filename)
		if err != nil || ok {
			continue
		}
		if err := s.saved.Delete(ctx, row.Filename); err != nil && !errors.Is(err, core.ErrSavedFileNotFound) {
			return removed, err
		}
	}
	if removed > 0 {
		log.Printf("[CleaningService] Purged %d saved session(s) older than %s", removed, retention)
	}
	return removed, nil
}

// Export is an encoded dataset ready to send as a download
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Download encodes the full current dataset as csv or xlsx
func (s *CleaningService) Download(id core.SessionID, fileType string) (Export, error) {
	ft, err := downloadType(fileType)
	if err != nil {
		return Export{}, err
	}
	st, err := s.loadedState(id)
	if err != nil {
		return Export{}, err
	}

	base := st.SavedFilename
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(st.SourceName), filepath.Ext(st.SourceName))
	}
	if base == "" || base == "." {
		base = "data"
	}
	return s.export(st.Frame, base+"_cleaned", ft)
}

// DownloadSaved encodes a saved dataset without opening it into a session
func (s *CleaningService) DownloadSaved(ctx context.Context, filename, fileType string) (Export, error) {
	ft, err := downloadType(fileType)
	if err != nil {
		return Export{}, err
	}
	f, err := s.frames.Load(ctx, filename)
	if err != nil {
		return Export{}, err
	}
	return s.export(f, filename, ft)
}

func (s *CleaningService) export(f *frame.Frame, base string, ft excel.FileType) (Export, error) {
	var buf bytes.Buffer
	if err := s.writer.Write(&buf, f, ft); err != nil {
		return Export{}, err
	}
	return Export{
		Filename:    fmt.Sprintf("%s.%s", base, ft),
		ContentType: ft.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

func downloadType(fileType string) (excel.FileType, error) {
	ft := excel.FileType(strings.ToLower(fileType))
	if ft != excel.FileTypeCSV && ft != excel.FileTypeXLSX {
		return "", core.NewInvalidParameterError("unsupported download type '%s' (expected csv or xlsx)", fileType)
	}
	return ft, nil
}
