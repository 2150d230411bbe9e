package calendly

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Webhook event names.
const (
	EventInviteeCreated  = "invitee.created"
	EventInviteeCanceled = "invitee.canceled"
)

// Outcome is what a webhook means for the visit.
type Outcome string

const (
	OutcomeBooked    Outcome = "booked"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeIgnored   Outcome = "ignored"
)

// ErrMalformed is returned when the body is not a Calendly envelope.
var ErrMalformed = errors.New("malformed calendly webhook")

// Event is the normalized invitee webhook.
type Event struct {
	Name         string
	Outcome      Outcome
	InviteeURI   string
	RawPhone     string
	PropertyID   string
	InviteeName  string
	InviteeEmail string
	EventName    string
	StartTime    *time.Time
	CancelReason string
	Rescheduled  bool
}

// IdempotencyKey identifies this delivery across provider retries.
func (e Event) IdempotencyKey() string {
	if e.InviteeURI == "" {
		return ""
	}
	return e.InviteeURI + ":" + e.Name
}

type envelope struct {
	Event   string  `json:"event"`
	Payload payload `json:"payload"`
}

type payload struct {
	URI                string `json:"uri"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	TextReminderNumber string `json:"text_reminder_number"`
	Rescheduled        bool   `json:"rescheduled"`
	Tracking           struct {
		UTMContent string `json:"utm_content"`
		UTMTerm    string `json:"utm_term"`
	} `json:"tracking"`
	QuestionsAndAnswers []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"questions_and_answers"`
	ScheduledEvent struct {
		Name      string `json:"name"`
		StartTime string `json:"start_time"`
	} `json:"scheduled_event"`
	Cancellation *struct {
		Reason string `json:"reason"`
	} `json:"cancellation"`
}

var phoneQuestionTokens = []string{"telefone", "whatsapp", "celular", "phone"}

// ParseEvent decodes an invitee webhook. Unknown event names parse with
// OutcomeIgnored so the caller can acknowledge them.
func ParseEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Event == "" {
		return Event{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}

	p := env.Payload
	ev := Event{
		Name:         env.Event,
		Outcome:      OutcomeIgnored,
		InviteeURI:   p.URI,
		RawPhone:     strings.TrimSpace(p.Tracking.UTMContent),
		PropertyID:   strings.TrimSpace(p.Tracking.UTMTerm),
		InviteeName:  strings.TrimSpace(p.Name),
		InviteeEmail: strings.TrimSpace(p.Email),
		EventName:    p.ScheduledEvent.Name,
		Rescheduled:  p.Rescheduled,
	}
	switch env.Event {
	case EventInviteeCreated:
		ev.Outcome = OutcomeBooked
	case EventInviteeCanceled:
		ev.Outcome = OutcomeCancelled
	}
	if p.Cancellation != nil {
		ev.CancelReason = p.Cancellation.Reason
	}
	if ev.RawPhone == "" {
		ev.RawPhone = strings.TrimSpace(p.TextReminderNumber)
	}
	if ev.RawPhone == "" {
		for _, qa := range p.QuestionsAndAnswers {
			if containsAny(strings.ToLower(qa.Question), phoneQuestionTokens) && strings.TrimSpace(qa.Answer) != "" {
				ev.RawPhone = strings.TrimSpace(qa.Answer)
				break
			}
		}
	}
	if p.ScheduledEvent.StartTime != "" {
		if t, err := time.Parse(time.RFC3339, p.ScheduledEvent.StartTime); err == nil {
			t = t.UTC()
			ev.StartTime = &t
		}
	}
	return ev, nil
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
