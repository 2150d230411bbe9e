package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// Cache keeps a snapshot of the catalog that is refreshed once it is older
// than the TTL. Concurrent refreshes collapse into one source call.
type Cache struct {
	source repository.Source
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	snapshot  []domain.Property
	byID      map[int]domain.Property
	fetchedAt time.Time
}

func NewCache(source repository.Source, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{source: source, ttl: ttl, log: log.WithComponent("catalog.cache"), now: time.Now}
}

// WithClock overrides the time source.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the current snapshot, refreshing it when stale. A failed
// refresh falls back to the previous snapshot if there is one.
func (c *Cache) Get(ctx context.Context) ([]domain.Property, error) {
	if snap, ok := c.fresh(); ok {
		return snap, nil
	}

	v, err, _ := c.group.Do("catalog", func() (any, error) {
		if snap, ok := c.fresh(); ok {
			return snap, nil
		}
		props, err := c.source.ListProperties(ctx)
		if err != nil {
			return nil, err
		}
		c.store(props)
		return props, nil
	})
	if err != nil {
		c.mu.RLock()
		stale := c.snapshot
		c.mu.RUnlock()
		if stale != nil {
			c.log.CollaboratorFailure("catalog", "refresh", err)
			return stale, nil
		}
		return nil, err
	}
	return v.([]domain.Property), nil
}

// Lookup returns a property from the current snapshot without refreshing.
func (c *Cache) Lookup(id int) (domain.Property, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// Invalidate drops the snapshot; the next Get reloads from the source.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	c.byID = nil
	c.fetchedAt = time.Time{}
}

// FetchedAt is the zero time when nothing is cached.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *Cache) fresh() ([]domain.Property, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.snapshot, true
}

func (c *Cache) store(props []domain.Property) {
	if props == nil {
		props = []domain.Property{}
	}
	byID := make(map[int]domain.Property, len(props))
	for _, p := range props {
		byID[p.ID] = p
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = props
	c.byID = byID
	c.fetchedAt = c.now()
}
