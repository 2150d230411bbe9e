// Package webhook normalizes the inbound provider webhooks (WhatsApp via
// Evolution API, Typebot and Calendly) and hands them to the core.
package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/calendly"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/dialogue"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/idempotency"
	leaddomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	leadservice "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/scheduling"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/workers"
)

// Dialogue handles one inbound customer message.
type Dialogue interface {
	HandleInboundMessage(ctx context.Context, phoneNumber, rawText string) (dialogue.Outcome, error)
}

// CalendarReconciler applies booking webhooks.
type CalendarReconciler interface {
	ReconcileCalendarEvent(ctx context.Context, ev calendly.Event) (scheduling.ReconcileResult, error)
}

// LeadCapturer writes Typebot captures under the phone lock.
type LeadCapturer interface {
	ApplyLocked(ctx context.Context, m leadservice.Mutation) (leadservice.Result, error)
}

// Messenger sends the optional Typebot welcome message.
type Messenger interface {
	SendMessage(ctx context.Context, phoneNumber, text string) error
}

// Disposition reports what happened to a delivery.
type Disposition string

const (
	Accepted  Disposition = "accepted"
	Duplicate Disposition = "duplicate"
	Ignored   Disposition = "ignored"
)

// Deps groups the webhook service collaborators. Messenger may be nil.
type Deps struct {
	Gate       *idempotency.Gate
	Dispatcher workers.Dispatcher
	Dialogue   Dialogue
	Calendar   CalendarReconciler
	Leads      LeadCapturer
	Extractor  *Extractor
	Phone      phone.Normalizer
	Messenger  Messenger
	Welcome    string
	Log        *logger.Logger
}

// Service runs gate, normalization and handoff for every provider.
type Service struct {
	gate       *idempotency.Gate
	dispatcher workers.Dispatcher
	dialogue   Dialogue
	calendar   CalendarReconciler
	leads      LeadCapturer
	extractor  *Extractor
	phone      phone.Normalizer
	messenger  Messenger
	welcome    string
	log        *logger.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		gate:       d.Gate,
		dispatcher: d.Dispatcher,
		dialogue:   d.Dialogue,
		calendar:   d.Calendar,
		leads:      d.Leads,
		extractor:  d.Extractor,
		phone:      d.Phone,
		messenger:  d.Messenger,
		welcome:    d.Welcome,
		log:        d.Log.WithComponent("webhook"),
	}
}

// ReceiveWhatsApp gates every message of an Evolution delivery on its own id
// and hands the accepted ones to the dialogue orchestrator. Messages from the
// same sender are handled in delivery order by a single job. It never fails:
// problems are logged and the delivery is reported as ignored.
func (s *Service) ReceiveWhatsApp(ctx context.Context, body []byte) Disposition {
	log := s.log.WithContext(ctx)
	msgs, err := ParseEvolutionMessages(body)
	if errors.Is(err, ErrIgnoredEvent) {
		return Ignored
	}
	if err != nil {
		log.Warn("unreadable whatsapp webhook", "error", err)
		return Ignored
	}

	var (
		senders    []string
		texts      = make(map[string][]string)
		duplicates int
	)
	for _, msg := range msgs {
		phoneNumber := s.phone.Canonical(msg.RawSender)
		if phoneNumber == "" {
			log.Warn("whatsapp message without sender phone", "messageId", msg.ID)
			continue
		}

		key := msg.ID
		if key == "" {
			key = idempotency.ContentHash(body, []byte(msg.RawSender), []byte(msg.Text))
		}
		if s.duplicate(ctx, idempotency.SourceWhatsApp, key) {
			duplicates++
			continue
		}

		if _, ok := texts[phoneNumber]; !ok {
			senders = append(senders, phoneNumber)
		}
		texts[phoneNumber] = append(texts[phoneNumber], msg.Text)
	}

	if len(senders) == 0 {
		if duplicates > 0 {
			return Duplicate
		}
		return Ignored
	}

	for _, phoneNumber := range senders {
		pending := texts[phoneNumber]
		s.dispatcher.Go("whatsapp.message", func(ctx context.Context) error {
			for _, text := range pending {
				if _, err := s.dialogue.HandleInboundMessage(ctx, phoneNumber, text); err != nil {
					return fmt.Errorf("handle message for %s: %w", logger.MaskPhone(phoneNumber), err)
				}
			}
			return nil
		})
	}
	if len(msgs) > 1 {
		log.Info("whatsapp batch received", "messages", len(msgs), "senders", len(senders), "duplicates", duplicates)
	}
	return Accepted
}

// CaptureLead validates a Typebot submission synchronously and merges it
// into the lead. ErrMissingPhone is the only input error.
func (s *Service) CaptureLead(ctx context.Context, body []byte) (LeadSignal, Disposition, error) {
	sig, err := s.extractor.Extract(body)
	if err != nil {
		return LeadSignal{}, Ignored, err
	}

	key := sig.ResultID
	if key == "" {
		key = idempotency.ContentHash(body)
	}
	if s.duplicate(ctx, idempotency.SourceTypebot, key) {
		return sig, Duplicate, nil
	}

	res, err := s.leads.ApplyLocked(ctx, leadservice.Mutation{
		PhoneNumber: sig.PhoneNumber,
		Source:      leaddomain.SourceTypebot,
		Update:      sig.Update(),
	})
	if err != nil {
		// The form tool retries on 5xx; the retry must not look like a duplicate.
		_ = s.gate.Release(ctx, idempotency.SourceTypebot, key)
		return sig, Ignored, fmt.Errorf("capture typebot lead: %w", err)
	}
	s.log.WithPhone(sig.PhoneNumber).Info("typebot lead captured", "created", res.Created, "quality", res.Lead.Quality)

	if res.Created {
		s.sendWelcome(sig)
	}
	return sig, Accepted, nil
}

// ReceiveCalendly gates a Calendly delivery and reconciles it off the
// request goroutine. Malformed events are logged and acknowledged.
func (s *Service) ReceiveCalendly(ctx context.Context, body []byte) Disposition {
	log := s.log.WithContext(ctx)
	ev, err := calendly.ParseEvent(body)
	if err != nil {
		log.Warn("malformed calendly webhook", "error", err)
		return Ignored
	}

	key := ev.IdempotencyKey()
	if key == "" {
		key = idempotency.ContentHash(body)
	}
	if s.duplicate(ctx, idempotency.SourceCalendly, key) {
		return Duplicate
	}

	s.dispatcher.Go("calendly.event", func(ctx context.Context) error {
		res, err := s.calendar.ReconcileCalendarEvent(ctx, ev)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", ev.Name, err)
		}
		if !res.Applied {
			s.log.Info("calendly event not applied", "event", ev.Name, "reason", res.Reason)
		}
		return nil
	})
	return Accepted
}

// duplicate runs the gate. Store failures are already logged by the gate
// and the event proceeds.
func (s *Service) duplicate(ctx context.Context, source, key string) bool {
	decision, _ := s.gate.Check(ctx, source, key)
	return decision == idempotency.Duplicate
}

func (s *Service) sendWelcome(sig LeadSignal) {
	if s.welcome == "" || s.messenger == nil {
		return
	}
	name := sig.Name
	if name == "" {
		name = "cliente"
	}
	text := config.RenderReply(s.welcome, map[string]string{"name": name})
	phoneNumber := sig.PhoneNumber
	s.dispatcher.Go("typebot.welcome", func(ctx context.Context) error {
		return s.messenger.SendMessage(ctx, phoneNumber, text)
	})
}
