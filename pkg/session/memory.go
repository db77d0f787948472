package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Suitable for single-instance
// deployments and tests; restarting the process logs everyone out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
}

type entry struct {
	session   *Session
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryStore{sessions: make(map[string]entry), ttl: ttl}
}

func (s *MemoryStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = entry{session: session, expiresAt: time.Now().Add(s.ttl)}

	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	stored, found := s.sessions[id]
	s.mu.RUnlock()

	if !found {
		return nil, ErrNotFound
	}

	if time.Now().After(stored.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()

		return nil, ErrNotFound
	}

	return stored.session, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
