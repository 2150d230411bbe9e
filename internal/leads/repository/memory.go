package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
)

// MemoryRepository is an in-process Lead Store used without DATABASE_URL and in tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*domain.Lead
}

func NewMemory() *MemoryRepository {
	return &MemoryRepository{leads: make(map[string]*domain.Lead)}
}

func (m *MemoryRepository) Get(_ context.Context, phoneNumber string) (*domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[phoneNumber]
	if !ok {
		return nil, domain.ErrLeadNotFound
	}
	return clone(lead), nil
}

func (m *MemoryRepository) Save(_ context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := clone(lead)
	if existing, ok := m.leads[lead.PhoneNumber]; ok {
		stored.Source = existing.Source
		stored.CreatedAt = existing.CreatedAt
	}
	m.leads[lead.PhoneNumber] = stored
	return nil
}

func (m *MemoryRepository) List(_ context.Context, params ListParams) ([]domain.Lead, int, error) {
	m.mu.RLock()
	matched := make([]domain.Lead, 0, len(m.leads))
	for _, lead := range m.leads {
		if params.Quality != nil && lead.Quality != *params.Quality {
			continue
		}
		matched = append(matched, *clone(lead))
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Score != matched[j].Score {
			return matched[i].Score > matched[j].Score
		}
		return matched[i].PhoneNumber < matched[j].PhoneNumber
	})

	total := len(matched)
	offset := max(params.Offset, 0)
	if offset >= total {
		return []domain.Lead{}, total, nil
	}
	end := min(offset+normalizeLimit(params.Limit), total)
	return matched[offset:end], total, nil
}

// clone deep-copies through JSON; leads are small and this keeps pointer
// fields from leaking between callers.
func clone(lead *domain.Lead) *domain.Lead {
	raw, _ := json.Marshal(lead)
	var out domain.Lead
	_ = json.Unmarshal(raw, &out)
	return &out
}
