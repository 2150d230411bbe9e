package idempotency

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	seenAt  time.Time
	element *list.Element
}

// MemoryStore is a size-bounded TTL set of receipts for single-process use.
// The oldest entry is evicted once maxSize is reached.
type MemoryStore struct {
	mu      sync.Mutex
	seen    map[string]*memoryEntry
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration, maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 100_000
	}
	return &MemoryStore{
		seen:    make(map[string]*memoryEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// WithClock overrides the time source used for expiry.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Record checks and marks the receipt atomically.
func (s *MemoryStore) Record(_ context.Context, r Receipt) (bool, error) {
	key := r.SourceSystem + ":" + r.ExternalEventID
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.seen[key]; ok {
		if now.Sub(entry.seenAt) < s.ttl {
			return false, nil
		}
		s.order.Remove(entry.element)
		delete(s.seen, key)
	}

	if len(s.seen) >= s.maxSize {
		s.evictOldest()
	}
	s.seen[key] = &memoryEntry{seenAt: now, element: s.order.PushBack(key)}
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, source, externalEventID string) error {
	key := source + ":" + externalEventID

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.seen[key]; ok {
		s.order.Remove(entry.element)
		delete(s.seen, key)
	}
	return nil
}

// Len returns the number of tracked receipts.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *MemoryStore) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.seen, key)
}
