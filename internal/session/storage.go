package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
)

// FrameStore persists saved dataframes under a key (the saved filename)
type FrameStore interface {
	Save(ctx context.Context, key string, f *frame.Frame) (*BlobMetadata, error)
	Load(ctx context.Context, key string) (*frame.Frame, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]BlobMetadata, error)
	CleanupExpired(ctx context.Context, olderThan time.Duration) (int, error)
}

// BlobMetadata represents metadata for stored frames
type BlobMetadata struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	Checksum     core.Hash `json:"checksum"`
	LastModified time.Time `json:"last_modified"`
}

const frameExt = ".frame.json"

// LocalFrameStore keeps saved frames as JSON files in one directory
type LocalFrameStore struct {
	basePath string
}

// NewLocalFrameStore creates the directory if needed
func NewLocalFrameStore(basePath string) (*LocalFrameStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create saved sessions directory: %w", err)
	}
	return &LocalFrameStore{basePath: basePath}, nil
}

// Save writes f under key, replacing any previous file
func (s *LocalFrameStore) Save(ctx context.Context, key string, f *frame.Frame) (*BlobMetadata, error) {
	path, err := s.keyToPath(key)
	if err != nil {
		return nil, err
	}
	content, err := f.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &BlobMetadata{
		Key:          key,
		Size:         int64(len(content)),
		Checksum:     core.NewHash(content),
		LastModified: time.Now(),
	}, nil
}

// Load reads the frame stored under key
func (s *LocalFrameStore) Load(ctx context.Context, key string) (*frame.Frame, error) {
	path, err := s.keyToPath(key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrSavedFileNotFound, key)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return frame.Decode(content)
}

// Delete removes the frame stored under key
func (s *LocalFrameStore) Delete(ctx context.Context, key string) error {
	path, err := s.keyToPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}

// Exists checks if a frame is stored under key
func (s *LocalFrameStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.keyToPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check file existence: %w", err)
}

// List returns stored frames, newest first
func (s *LocalFrameStore) List(ctx context.Context) ([]BlobMetadata, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved sessions: %w", err)
	}

	var out []BlobMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), frameExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, BlobMetadata{
			Key:          strings.TrimSuffix(entry.Name(), frameExt),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

// CleanupExpired removes frames not modified within olderThan
func (s *LocalFrameStore) CleanupExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	items, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, item := range items {
		if item.LastModified.Before(cutoff) {
			if err := s.Delete(ctx, item.Key); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// keyToPath maps a key onto a file inside the store, rejecting anything that would escape it
func (s *LocalFrameStore) keyToPath(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", core.NewInvalidParameterError("invalid saved session name '%s'", key)
	}
	return filepath.Join(s.basePath, key+frameExt), nil
}
