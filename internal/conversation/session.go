// Package conversation holds the ephemeral per-phone dialogue state.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSessionNotFound is returned when no live session exists for a phone number.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidTransition is returned for a scheduling state change the machine forbids.
	ErrInvalidTransition = errors.New("invalid scheduling transition")
)

// MaxHistory bounds the number of turns kept per session.
const MaxHistory = 40

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Turn is one message in the dialogue.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CustomerInfo holds what the dialogue has learned about the customer this session.
type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// SchedulingState tracks the visit booking flow.
type SchedulingState string

const (
	StateNone      SchedulingState = "none"
	StateRequested SchedulingState = "requested"
	StateLinkSent  SchedulingState = "link-sent"
	StateBooked    SchedulingState = "booked"
	StateCancelled SchedulingState = "cancelled"
)

// transitions lists the allowed next states. Self-loops cover retries and
// duplicate provider callbacks; cancelled may start a new booking cycle.
var transitions = map[SchedulingState][]SchedulingState{
	StateNone:      {StateRequested},
	StateRequested: {StateRequested, StateLinkSent, StateCancelled},
	StateLinkSent:  {StateLinkSent, StateBooked, StateCancelled},
	StateBooked:    {StateBooked, StateCancelled},
	StateCancelled: {StateRequested},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to SchedulingState) bool {
	if from == "" {
		from = StateNone
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// forward is the booking path walked by AdvanceTo.
var forward = map[SchedulingState]SchedulingState{
	StateNone:      StateRequested,
	StateCancelled: StateRequested,
	StateRequested: StateLinkSent,
	StateLinkSent:  StateBooked,
}

// Visit is the booking attempt the session is tracking.
type Visit struct {
	PropertyID    int        `json:"propertyId"`
	PropertyTitle string     `json:"propertyTitle"`
	Link          string     `json:"link,omitempty"`
	RequestedAt   time.Time  `json:"requestedAt"`
	StartTime     *time.Time `json:"startTime,omitempty"`
}

// Session is the dialogue state for one phone number.
type Session struct {
	PhoneNumber      string          `json:"phoneNumber"`
	History          []Turn          `json:"history"`
	CustomerInfo     CustomerInfo    `json:"customerInfo"`
	ActivePropertyID *int            `json:"activePropertyId,omitempty"`
	SchedulingState  SchedulingState `json:"schedulingState"`
	Visit            *Visit          `json:"visit,omitempty"`
	LastActivity     time.Time       `json:"lastActivity"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// New returns an empty session.
func New(phoneNumber string, now time.Time) *Session {
	return &Session{
		PhoneNumber:     phoneNumber,
		History:         []Turn{},
		SchedulingState: StateNone,
		LastActivity:    now,
		CreatedAt:       now,
	}
}

// Append adds a turn, dropping the oldest beyond MaxHistory.
func (s *Session) Append(role Role, text string, at time.Time) {
	s.History = append(s.History, Turn{Role: role, Text: text, Timestamp: at})
	if len(s.History) > MaxHistory {
		s.History = append([]Turn(nil), s.History[len(s.History)-MaxHistory:]...)
	}
	if at.After(s.LastActivity) {
		s.LastActivity = at
	}
}

// Transition moves the scheduling state or returns ErrInvalidTransition.
func (s *Session) Transition(to SchedulingState) error {
	from := s.State()
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s.SchedulingState = to
	return nil
}

// AdvanceTo walks the booking path one allowed transition at a time until
// target is reached. It fails without changing state when target is not
// ahead on the path.
func (s *Session) AdvanceTo(target SchedulingState) error {
	steps := []SchedulingState{}
	for cur := s.State(); cur != target; {
		next, ok := forward[cur]
		if !ok || len(steps) > len(forward) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State(), target)
		}
		steps = append(steps, next)
		cur = next
	}
	for _, step := range steps {
		if err := s.Transition(step); err != nil {
			return err
		}
	}
	return nil
}

// State returns the scheduling state, treating empty as none.
func (s *Session) State() SchedulingState {
	if s.SchedulingState == "" {
		return StateNone
	}
	return s.SchedulingState
}

// MergeCustomerInfo keeps existing values when incoming ones are blank.
func (s *Session) MergeCustomerInfo(info CustomerInfo) {
	if v := strings.TrimSpace(info.Name); v != "" {
		s.CustomerInfo.Name = v
	}
	if v := strings.TrimSpace(info.Email); v != "" {
		s.CustomerInfo.Email = v
	}
}

// SetActiveProperty records the property currently under discussion.
func (s *Session) SetActiveProperty(id int) {
	if id <= 0 {
		return
	}
	s.ActivePropertyID = &id
}

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) > ttl
}

// CustomerMessages counts customer turns in the retained history.
func (s *Session) CustomerMessages() int {
	n := 0
	for _, t := range s.History {
		if t.Role == RoleCustomer {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to read outside the per-phone lock.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = append([]Turn(nil), s.History...)
	if s.ActivePropertyID != nil {
		id := *s.ActivePropertyID
		c.ActivePropertyID = &id
	}
	if s.Visit != nil {
		v := *s.Visit
		if s.Visit.StartTime != nil {
			st := *s.Visit.StartTime
			v.StartTime = &st
		}
		c.Visit = &v
	}
	return &c
}
