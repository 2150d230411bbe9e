package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrReminderNotFound is returned for an unknown reminder id.
var ErrReminderNotFound = errors.New("reminder not found")

type ReminderKind string

const (
	ReminderDayBefore   ReminderKind = "day_before"
	ReminderHoursBefore ReminderKind = "hours_before"
)

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderEnqueued  ReminderStatus = "enqueued"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// Offsets before the visit at which reminders are sent.
var reminderOffsets = []struct {
	kind   ReminderKind
	before time.Duration
}{
	{ReminderDayBefore, 24 * time.Hour},
	{ReminderHoursBefore, 2 * time.Hour},
}

// Reminder is a WhatsApp message to send ahead of a booked visit.
type Reminder struct {
	ID            uuid.UUID      `json:"id"`
	PhoneNumber   string         `json:"phoneNumber"`
	CustomerName  string         `json:"customerName,omitempty"`
	PropertyID    int            `json:"propertyId,omitempty"`
	PropertyTitle string         `json:"propertyTitle,omitempty"`
	Kind          ReminderKind   `json:"kind"`
	VisitAt       time.Time      `json:"visitAt"`
	RemindAt      time.Time      `json:"remindAt"`
	Status        ReminderStatus `json:"status"`
	LastError     *string        `json:"lastError,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	SentAt        *time.Time     `json:"sentAt,omitempty"`
}

// ReminderStore persists reminders.
type ReminderStore interface {
	Create(ctx context.Context, reminders []Reminder) error
	Get(ctx context.Context, id uuid.UUID) (Reminder, error)
	// CancelPending cancels every pending or enqueued reminder for phoneNumber.
	CancelPending(ctx context.Context, phoneNumber string) (int, error)
	// ListPending returns pending and enqueued reminders ordered by remind time.
	ListPending(ctx context.Context, limit int) ([]Reminder, error)
	// ClaimDue moves pending reminders due by horizon to enqueued and returns them.
	ClaimDue(ctx context.Context, horizon time.Time, limit int) ([]Reminder, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError string) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// PlanReminders builds the reminders for a visit, skipping any whose send
// time has already passed.
func PlanReminders(visit VisitDetails, now time.Time) []Reminder {
	var out []Reminder
	for _, off := range reminderOffsets {
		at := visit.StartTime.Add(-off.before)
		if !at.After(now) {
			continue
		}
		out = append(out, Reminder{
			ID:            uuid.New(),
			PhoneNumber:   visit.PhoneNumber,
			CustomerName:  visit.CustomerName,
			PropertyID:    visit.PropertyID,
			PropertyTitle: visit.PropertyTitle,
			Kind:          off.kind,
			VisitAt:       visit.StartTime.UTC(),
			RemindAt:      at.UTC(),
			Status:        ReminderPending,
			CreatedAt:     now.UTC(),
		})
	}
	return out
}

// VisitDetails is what a booked visit contributes to its reminders.
type VisitDetails struct {
	PhoneNumber   string
	CustomerName  string
	PropertyID    int
	PropertyTitle string
	StartTime     time.Time
}
