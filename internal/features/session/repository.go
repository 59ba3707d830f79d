package session

import (
	"context"
	"sync"

	"records-console/internal/common/apperrors"
)

// SessionStore keeps live sessions. Sessions hold the backend credential, so the
// only implementation keeps them in process memory.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)
}

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() SessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (r *MemorySessionStore) Save(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *MemorySessionStore) FindByID(ctx context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

func (r *MemorySessionStore) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionStore) List(ctx context.Context) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out, nil
}
