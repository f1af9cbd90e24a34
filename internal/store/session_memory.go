package store

import (
	"sync"

	"bookshop/pkg/domain"
)

// MemorySessionStore holds sessions in-process for tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemorySessionStore initializes an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.Session)}
}

// Get returns the session for an ID.
func (m *MemorySessionStore) Get(id string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok, nil
}

// Put stores the session state.
func (m *MemorySessionStore) Put(id string, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	return nil
}

// Destroy removes the session.
func (m *MemorySessionStore) Destroy(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
