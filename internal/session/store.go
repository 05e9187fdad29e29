package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store persists session records. Writes after creation go through
// CompareAndSwap so concurrent operations on the same session cannot
// silently overwrite each other.
type Store interface {
	// Put creates a new session record. The stored Version starts at 1.
	Put(ctx context.Context, s *Session) error

	// Get returns a copy of a session, or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// CompareAndSwap persists s if the stored Version still equals
	// s.Version, then increments it. Returns ErrConcurrentModification on a
	// lost race and ErrSessionNotFound if the session is gone.
	CompareAndSwap(ctx context.Context, s *Session) error

	// ListByUser returns a user's sessions, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session already exists: %s", s.ID)
	}
	stored := s.Clone()
	stored.Version = 1
	m.sessions[s.ID] = stored
	s.Version = 1
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}
	if stored.Version != s.Version {
		return fmt.Errorf("%w: %s (have %d, want %d)",
			ErrConcurrentModification, s.ID, s.Version, stored.Version)
	}
	next := s.Clone()
	next.Version = s.Version + 1
	m.sessions[s.ID] = next
	s.Version = next.Version
	return nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
