package shopauth

import (
	"context"
	"sync"
)

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemorySessionStore constructs an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]Session{}}
}

// Store implements SessionStore.
func (m *MemorySessionStore) Store(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[s.ID]; ok {
		s.CreatedAt = existing.CreatedAt
	}
	m.sessions[s.ID] = s
	return nil
}

// FindOffline implements SessionStore.
func (m *MemorySessionStore) FindOffline(_ context.Context, shop string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[OfflineSessionID(shop)]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// DeleteByShop implements SessionStore.
func (m *MemorySessionStore) DeleteByShop(_ context.Context, shop string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.Shop == shop {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
