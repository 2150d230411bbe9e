// Package notification reacts to domain events: it emails the broker when a
// lead turns hot or a visit is booked, and forwards every event to the
// message broker.
package notification

import (
	"context"
	"fmt"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/email"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/events"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

const qualityHot = "hot"

// Module handles the broker email subscriptions.
type Module struct {
	sender email.Sender
	log    *logger.Logger
}

func New(sender email.Sender, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{sender: sender, log: log.WithComponent("notification")}
}

// RegisterHandlers subscribes to the events that produce an email.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadQualityChanged{}.EventName(), m)
	bus.Subscribe(events.VisitBooked{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadQualityChanged:
		return m.handleLeadQualityChanged(ctx, e)
	case events.VisitBooked:
		return m.handleVisitBooked(ctx, e)
	default:
		m.log.Debug("unhandled event", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadQualityChanged(ctx context.Context, e events.LeadQualityChanged) error {
	if e.Quality != qualityHot || e.PreviousQuality == qualityHot {
		return nil
	}
	err := m.sender.SendHotLead(ctx, email.HotLead{
		PhoneNumber:     e.PhoneNumber,
		CustomerName:    e.Name,
		Score:           e.Score,
		PreviousQuality: e.PreviousQuality,
		Indicators:      e.Indicators,
	})
	if err != nil {
		m.log.WithPhone(e.PhoneNumber).CollaboratorFailure("smtp", "send hot lead email", err)
		return fmt.Errorf("hot lead email: %w", err)
	}
	m.log.WithPhone(e.PhoneNumber).Info("hot lead email sent", "score", e.Score)
	return nil
}

func (m *Module) handleVisitBooked(ctx context.Context, e events.VisitBooked) error {
	err := m.sender.SendVisitBooked(ctx, email.VisitBooked{
		PhoneNumber:   e.PhoneNumber,
		CustomerName:  e.CustomerName,
		CustomerEmail: e.CustomerEmail,
		PropertyID:    e.PropertyID,
		PropertyTitle: e.PropertyTitle,
		StartTime:     e.StartTime,
	})
	if err != nil {
		m.log.WithPhone(e.PhoneNumber).CollaboratorFailure("smtp", "send visit booked email", err)
		return fmt.Errorf("visit booked email: %w", err)
	}
	m.log.WithPhone(e.PhoneNumber).Info("visit booked email sent")
	return nil
}
