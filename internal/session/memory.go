package session

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-memory Store implementation for tests and development.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

// Get returns a copy of the stored session, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, userKey string) (*Session, error) {
	m.mu.RLock()
	raw, ok := m.sessions[userKey]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Set stores a copy of the session.
func (m *MemoryStore) Set(_ context.Context, userKey string, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[userKey] = raw
	m.mu.Unlock()
	return nil
}

// Exists reports whether the user has a stored session.
func (m *MemoryStore) Exists(_ context.Context, userKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[userKey]
	return ok, nil
}
