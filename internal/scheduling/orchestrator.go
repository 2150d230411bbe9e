// Package scheduling turns visit intent into booking links and reconciles
// calendar webhooks with the conversation and the lead.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/calendly"
	catalogdomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/events"
	leaddomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	leadservice "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/keylock"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
)

// PropertyResolver looks up catalog properties.
type PropertyResolver interface {
	GetProperty(ctx context.Context, id int) (catalogdomain.Property, error)
}

// LinkProvider creates booking links.
type LinkProvider interface {
	CreateBookingLink(ctx context.Context, req calendly.BookingRequest) (string, error)
}

// LeadWriter applies lead mutations while the caller holds the phone lock.
type LeadWriter interface {
	Apply(ctx context.Context, m leadservice.Mutation) (leadservice.Result, error)
}

// Outcome classifies a visit request.
type Outcome string

const (
	OutcomeLinkSent         Outcome = "link_sent"
	OutcomePropertyNotFound Outcome = "property_not_found"
	OutcomeLinkFailed       Outcome = "link_failed"
	OutcomeAlreadyBooked    Outcome = "already_booked"
)

// VisitRequest asks for a booking link. PhoneNumber must be canonical.
type VisitRequest struct {
	PhoneNumber   string
	CustomerName  string
	CustomerEmail string
	PropertyID    int
	PropertyTitle string
	// Source is recorded if the lead does not exist yet.
	Source leaddomain.Source
}

// VisitResult is the outcome of RequestVisit.
type VisitResult struct {
	Success        bool    `json:"success"`
	Outcome        Outcome `json:"outcome"`
	SchedulingLink string  `json:"schedulingLink,omitempty"`
	PropertyID     int     `json:"propertyId,omitempty"`
	PropertyTitle  string  `json:"propertyTitle,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// ReconcileResult reports what a calendar webhook changed.
type ReconcileResult struct {
	Applied     bool                         `json:"applied"`
	PhoneNumber string                       `json:"phoneNumber,omitempty"`
	State       conversation.SchedulingState `json:"state,omitempty"`
	Reminders   int                          `json:"reminders"`
	Reason      string                       `json:"reason,omitempty"`
}

// Orchestrator drives the scheduling state machine.
type Orchestrator struct {
	sessions  conversation.Store
	leads     LeadWriter
	locker    keylock.Locker
	resolver  PropertyResolver
	links     LinkProvider
	reminders ReminderStore
	phone     phone.Normalizer
	bus       events.Bus
	now       func() time.Time
	log       *logger.Logger
}

// Deps groups the orchestrator collaborators. Reminders and Bus may be nil.
type Deps struct {
	Sessions  conversation.Store
	Leads     LeadWriter
	Locker    keylock.Locker
	Resolver  PropertyResolver
	Links     LinkProvider
	Reminders ReminderStore
	Phone     phone.Normalizer
	Bus       events.Bus
	Log       *logger.Logger
}

func NewOrchestrator(d Deps) *Orchestrator {
	return &Orchestrator{
		sessions:  d.Sessions,
		leads:     d.Leads,
		locker:    d.Locker,
		resolver:  d.Resolver,
		links:     d.Links,
		reminders: d.Reminders,
		phone:     d.Phone,
		bus:       d.Bus,
		now:       time.Now,
		log:       d.Log.WithComponent("scheduling"),
	}
}

// WithClock overrides the time source.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// RequestVisit moves the session to requested, asks the link provider for
// a booking link and on success moves it to link-sent. The caller must not
// hold the phone lock. A link failure leaves the session in requested and
// is reported in the result; it is not retried.
func (o *Orchestrator) RequestVisit(ctx context.Context, req VisitRequest) (VisitResult, error) {
	prop, err := o.resolve(ctx, req.PropertyID)
	if errors.Is(err, catalogdomain.ErrPropertyNotFound) {
		return VisitResult{Outcome: OutcomePropertyNotFound, PropertyID: req.PropertyID, Error: "property not found"}, nil
	}
	if err != nil {
		return VisitResult{}, fmt.Errorf("resolve property %d: %w", req.PropertyID, err)
	}
	title := prop.Title
	if title == "" {
		title = req.PropertyTitle
	}
	log := o.log.WithPhone(req.PhoneNumber)

	var already *VisitResult
	var customer conversation.CustomerInfo
	err = o.locked(ctx, req.PhoneNumber, func(s *conversation.Session, now time.Time) (*leaddomain.Update, error) {
		s.MergeCustomerInfo(conversation.CustomerInfo{Name: req.CustomerName, Email: req.CustomerEmail})
		customer = s.CustomerInfo
		if s.State() == conversation.StateBooked {
			booked := VisitResult{Outcome: OutcomeAlreadyBooked, PropertyID: prop.ID, PropertyTitle: title}
			if s.Visit != nil && s.Visit.PropertyTitle != "" {
				booked.PropertyID, booked.PropertyTitle = s.Visit.PropertyID, s.Visit.PropertyTitle
			}
			already = &booked
			return nil, nil
		}
		if s.State() != conversation.StateLinkSent {
			if err := s.Transition(conversation.StateRequested); err != nil {
				return nil, err
			}
		}
		s.Visit = &conversation.Visit{PropertyID: prop.ID, PropertyTitle: title, RequestedAt: now}
		s.SetActiveProperty(prop.ID)
		s.LastActivity = now
		return &leaddomain.Update{
			Name:       nonEmpty(req.CustomerName),
			Email:      nonEmpty(req.CustomerEmail),
			PropertyID: &prop.ID,
			AddTags:    []string{leaddomain.TagSchedulingIntent},
			RemoveTags: []string{leaddomain.TagVisitCancelled},
		}, nil
	}, req.Source)
	if err != nil {
		return VisitResult{}, err
	}
	if already != nil {
		log.Info("visit already booked", "propertyId", already.PropertyID)
		return *already, nil
	}

	link, err := o.links.CreateBookingLink(ctx, calendly.BookingRequest{
		PhoneNumber:   req.PhoneNumber,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		PropertyID:    strconv.Itoa(prop.ID),
		PropertyTitle: title,
	})
	if err != nil {
		log.CollaboratorFailure("calendly", "create booking link", err)
		return VisitResult{Outcome: OutcomeLinkFailed, PropertyID: prop.ID, PropertyTitle: title, Error: err.Error()}, nil
	}

	err = o.locked(ctx, req.PhoneNumber, func(s *conversation.Session, _ time.Time) (*leaddomain.Update, error) {
		switch s.State() {
		case conversation.StateRequested, conversation.StateLinkSent:
			if err := s.Transition(conversation.StateLinkSent); err != nil {
				return nil, err
			}
			if s.Visit == nil {
				s.Visit = &conversation.Visit{PropertyID: prop.ID, PropertyTitle: title, RequestedAt: o.now().UTC()}
			}
			s.Visit.Link = link
		default:
			log.Warn("booking link created after state moved on", "state", s.State())
		}
		return &leaddomain.Update{}, nil
	}, req.Source)
	if err != nil {
		return VisitResult{}, err
	}

	o.publish(ctx, events.VisitLinkSent{
		BaseEvent:     events.NewBaseEvent(),
		PhoneNumber:   req.PhoneNumber,
		PropertyID:    prop.ID,
		PropertyTitle: title,
		Link:          link,
	})
	log.Info("booking link created", "propertyId", prop.ID)
	return VisitResult{Success: true, Outcome: OutcomeLinkSent, SchedulingLink: link, PropertyID: prop.ID, PropertyTitle: title}, nil
}

// ReconcileCalendarEvent applies a booked or cancelled invitee webhook to the
// session and lead identified by the phone carried in the booking link.
// Events that cannot be matched are logged and reported as not applied.
func (o *Orchestrator) ReconcileCalendarEvent(ctx context.Context, ev calendly.Event) (ReconcileResult, error) {
	if ev.Outcome == calendly.OutcomeIgnored {
		o.log.Info("calendly event ignored", "event", ev.Name)
		return ReconcileResult{Reason: "unsupported event " + ev.Name}, nil
	}
	phoneNumber := o.phone.Canonical(ev.RawPhone)
	if phoneNumber == "" {
		o.log.Warn("calendly event without customer phone", "event", ev.Name, "invitee", ev.InviteeURI)
		return ReconcileResult{Reason: "missing customer phone"}, nil
	}
	log := o.log.WithPhone(phoneNumber)
	if ev.Outcome == calendly.OutcomeCancelled && ev.Rescheduled {
		// The replacement booking arrives as its own invitee.created.
		log.Info("cancellation of rescheduled booking ignored", "invitee", ev.InviteeURI)
		return ReconcileResult{PhoneNumber: phoneNumber, Reason: "rescheduled"}, nil
	}
	propertyID, _ := strconv.Atoi(ev.PropertyID)

	var (
		state   conversation.SchedulingState
		visit   conversation.Visit
		display string
		email   string
	)
	err := o.locked(ctx, phoneNumber, func(s *conversation.Session, now time.Time) (*leaddomain.Update, error) {
		s.MergeCustomerInfo(conversation.CustomerInfo{Name: ev.InviteeName, Email: ev.InviteeEmail})
		if s.Visit == nil {
			s.Visit = &conversation.Visit{PropertyID: propertyID, RequestedAt: now}
		}
		if s.Visit.PropertyID == 0 {
			s.Visit.PropertyID = propertyID
		}

		update := &leaddomain.Update{
			Name:  nonEmpty(ev.InviteeName),
			Email: nonEmpty(ev.InviteeEmail),
		}
		if s.Visit.PropertyID > 0 {
			id := s.Visit.PropertyID
			update.PropertyID = &id
		}

		switch ev.Outcome {
		case calendly.OutcomeBooked:
			if err := s.AdvanceTo(conversation.StateBooked); err != nil {
				return nil, err
			}
			if ev.StartTime != nil {
				st := *ev.StartTime
				s.Visit.StartTime = &st
			}
			update.AddTags = []string{leaddomain.TagVisitBooked}
			update.RemoveTags = []string{leaddomain.TagVisitCancelled}
			update.Observation = nonEmpty(bookedNote(ev))
		case calendly.OutcomeCancelled:
			if conversation.CanTransition(s.State(), conversation.StateCancelled) {
				if err := s.Transition(conversation.StateCancelled); err != nil {
					return nil, err
				}
			} else {
				log.Info("cancellation without active booking cycle", "state", s.State())
			}
			s.Visit.StartTime = nil
			update.AddTags = []string{leaddomain.TagVisitCancelled}
			update.RemoveTags = []string{leaddomain.TagVisitBooked}
			update.Observation = nonEmpty(cancelledNote(ev))
		}

		state = s.State()
		visit = *s.Visit
		display, email = s.CustomerInfo.Name, s.CustomerInfo.Email
		return update, nil
	}, leaddomain.SourceManual)
	if err != nil {
		return ReconcileResult{}, err
	}

	result := ReconcileResult{Applied: true, PhoneNumber: phoneNumber, State: state}
	switch ev.Outcome {
	case calendly.OutcomeBooked:
		result.Reminders = o.scheduleReminders(ctx, phoneNumber, display, visit)
		o.publish(ctx, events.VisitBooked{
			BaseEvent:     events.NewBaseEvent(),
			PhoneNumber:   phoneNumber,
			CustomerName:  display,
			CustomerEmail: email,
			PropertyID:    visit.PropertyID,
			PropertyTitle: visit.PropertyTitle,
			StartTime:     visit.StartTime,
		})
	case calendly.OutcomeCancelled:
		o.cancelReminders(ctx, phoneNumber)
		o.publish(ctx, events.VisitCancelled{
			BaseEvent:   events.NewBaseEvent(),
			PhoneNumber: phoneNumber,
			PropertyID:  visit.PropertyID,
			Reason:      ev.CancelReason,
		})
	}
	log.Info("calendar event reconciled", "event", ev.Name, "state", state)
	return result, nil
}

// locked runs fn on the live session under the phone lock, saves the
// session and applies the returned lead update, if any.
func (o *Orchestrator) locked(ctx context.Context, phoneNumber string, fn func(*conversation.Session, time.Time) (*leaddomain.Update, error), source leaddomain.Source) error {
	unlock, err := o.locker.Lock(ctx, phoneNumber)
	if err != nil {
		return fmt.Errorf("lock %s: %w", logger.MaskPhone(phoneNumber), err)
	}
	defer unlock()

	now := o.now().UTC()
	s, _, err := conversation.LoadOrNew(ctx, o.sessions, phoneNumber, now)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	update, err := fn(s, now)
	if err != nil {
		return err
	}
	if update == nil {
		return o.sessions.Save(ctx, s)
	}
	if err := o.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	update.ActivityAt = &now
	if _, err := o.leads.Apply(ctx, leadservice.Mutation{
		PhoneNumber: phoneNumber,
		Source:      source,
		Update:      *update,
		Session:     s,
	}); err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

func (o *Orchestrator) resolve(ctx context.Context, id int) (catalogdomain.Property, error) {
	if id <= 0 {
		return catalogdomain.Property{}, catalogdomain.ErrPropertyNotFound
	}
	return o.resolver.GetProperty(ctx, id)
}

func (o *Orchestrator) scheduleReminders(ctx context.Context, phoneNumber, name string, visit conversation.Visit) int {
	if o.reminders == nil || visit.StartTime == nil {
		return 0
	}
	if _, err := o.reminders.CancelPending(ctx, phoneNumber); err != nil {
		o.log.WithPhone(phoneNumber).Warn("clearing previous reminders failed", "error", err)
	}
	planned := PlanReminders(VisitDetails{
		PhoneNumber:   phoneNumber,
		CustomerName:  name,
		PropertyID:    visit.PropertyID,
		PropertyTitle: visit.PropertyTitle,
		StartTime:     *visit.StartTime,
	}, o.now().UTC())
	if err := o.reminders.Create(ctx, planned); err != nil {
		o.log.WithPhone(phoneNumber).Warn("creating reminders failed", "error", err)
		return 0
	}
	return len(planned)
}

func (o *Orchestrator) cancelReminders(ctx context.Context, phoneNumber string) {
	if o.reminders == nil {
		return
	}
	n, err := o.reminders.CancelPending(ctx, phoneNumber)
	if err != nil {
		o.log.WithPhone(phoneNumber).Warn("cancelling reminders failed", "error", err)
		return
	}
	if n > 0 {
		o.log.WithPhone(phoneNumber).Info("reminders cancelled", "count", n)
	}
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if o.bus != nil {
		o.bus.Publish(ctx, e)
	}
}

func bookedNote(ev calendly.Event) string {
	if ev.StartTime == nil {
		return "Visita agendada via Calendly"
	}
	return "Visita agendada via Calendly para " + ev.StartTime.Format("02/01/2006 15:04 MST")
}

func cancelledNote(ev calendly.Event) string {
	if ev.CancelReason == "" {
		return "Visita cancelada via Calendly"
	}
	return "Visita cancelada via Calendly: " + ev.CancelReason
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
