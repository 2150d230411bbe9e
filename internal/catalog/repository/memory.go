package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
)

// Static is an in-memory catalog used when Baserow is not configured and in tests.
type Static struct {
	mu    sync.RWMutex
	items map[int]domain.Property
}

func NewStatic(props ...domain.Property) *Static {
	s := &Static{items: make(map[int]domain.Property, len(props))}
	for _, p := range props {
		s.items[p.ID] = p
	}
	return s
}

// Put adds or replaces a property.
func (s *Static) Put(p domain.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = p
}

func (s *Static) ListProperties(_ context.Context) ([]domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Property, 0, len(s.items))
	for _, p := range s.items {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Static) GetProperty(_ context.Context, id int) (domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok || !p.Active {
		return domain.Property{}, domain.ErrPropertyNotFound
	}
	return p, nil
}
