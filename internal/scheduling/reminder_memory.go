package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryReminders keeps reminders in process memory.
type MemoryReminders struct {
	mu    sync.Mutex
	items map[uuid.UUID]Reminder
}

func NewMemoryReminders() *MemoryReminders {
	return &MemoryReminders{items: make(map[uuid.UUID]Reminder)}
}

func (m *MemoryReminders) Create(_ context.Context, reminders []Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reminders {
		m.items[r.ID] = r
	}
	return nil
}

func (m *MemoryReminders) Get(_ context.Context, id uuid.UUID) (Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return Reminder{}, ErrReminderNotFound
	}
	return r, nil
}

func (m *MemoryReminders) CancelPending(_ context.Context, phoneNumber string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.items {
		if r.PhoneNumber == phoneNumber && isOpen(r.Status) {
			r.Status = ReminderCancelled
			m.items[id] = r
			n++
		}
	}
	return n, nil
}

func (m *MemoryReminders) ListPending(_ context.Context, limit int) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(func(r Reminder) bool { return isOpen(r.Status) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryReminders) ClaimDue(_ context.Context, horizon time.Time, limit int) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := m.filter(func(r Reminder) bool { return r.Status == ReminderPending && !r.RemindAt.After(horizon) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].Status = ReminderEnqueued
		m.items[due[i].ID] = due[i]
	}
	return due, nil
}

func (m *MemoryReminders) MarkPending(_ context.Context, id uuid.UUID, lastError string) error {
	return m.update(id, func(r *Reminder) {
		r.Status = ReminderPending
		r.LastError = &lastError
	})
}

func (m *MemoryReminders) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	return m.update(id, func(r *Reminder) {
		r.Status = ReminderSent
		r.SentAt = &at
		r.LastError = nil
	})
}

func (m *MemoryReminders) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	return m.update(id, func(r *Reminder) {
		r.Status = ReminderFailed
		r.LastError = &lastError
	})
}

func (m *MemoryReminders) update(id uuid.UUID, fn func(*Reminder)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return ErrReminderNotFound
	}
	fn(&r)
	m.items[id] = r
	return nil
}

// filter must be called with mu held.
func (m *MemoryReminders) filter(keep func(Reminder) bool) []Reminder {
	var out []Reminder
	for _, r := range m.items {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemindAt.Before(out[j].RemindAt) })
	return out
}

func isOpen(s ReminderStatus) bool {
	return s == ReminderPending || s == ReminderEnqueued
}
