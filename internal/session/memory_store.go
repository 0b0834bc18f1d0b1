package session

import (
	"context"
	"sync"
)

// MemoryStore is a Store that keeps the session in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, nil //nolint:nilnil // Empty store is not an error
	}

	cp := *s.session
	return &cp, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = &session
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}
