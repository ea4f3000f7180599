package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tidyframe/domain/core"
	"tidyframe/ports"

	"github.com/google/uuid"
)

// SavedSessionRepository keeps saved-session metadata in memory. Used when no database is configured.
type SavedSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]ports.SavedSession
}

// NewSavedSessionRepository creates an empty repository
func NewSavedSessionRepository() *SavedSessionRepository {
	return &SavedSessionRepository{sessions: make(map[string]ports.SavedSession)}
}

var _ ports.SavedSessionRepository = (*SavedSessionRepository)(nil)

func (r *SavedSessionRepository) Upsert(ctx context.Context, s *ports.SavedSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.sessions[s.Filename]; ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	stored := *s
	stored.AutoCleanConfig = append([]byte(nil), s.AutoCleanConfig...)
	r.sessions[s.Filename] = stored
	return nil
}

func (r *SavedSessionRepository) GetByFilename(ctx context.Context, filename string) (*ports.SavedSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSavedFileNotFound, filename)
	}
	return &s, nil
}

func (r *SavedSessionRepository) List(ctx context.Context, limit int) ([]*ports.SavedSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ports.SavedSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Filename < out[j].Filename
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SavedSessionRepository) Delete(ctx context.Context, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[filename]; !ok {
		return fmt.Errorf("%w: %s", core.ErrSavedFileNotFound, filename)
	}
	delete(r.sessions, filename)
	return nil
}
