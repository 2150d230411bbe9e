package conversation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a store expiring sessions idle longer than ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session), ttl: ttl, now: time.Now}
}

// WithClock overrides the time source.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Get(_ context.Context, phoneNumber string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[phoneNumber]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Expired(m.now(), m.ttl) {
		m.mu.Lock()
		delete(m.sessions, phoneNumber)
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.PhoneNumber] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, phoneNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, phoneNumber)
	return nil
}
