package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// TextSender delivers a WhatsApp text.
type TextSender interface {
	SendMessage(ctx context.Context, phoneNumber, text string) error
}

// Enqueuer hands a claimed reminder to whatever delivers it.
type Enqueuer interface {
	Enqueue(ctx context.Context, r Reminder) error
}

// ReminderSender renders and sends a single reminder.
type ReminderSender struct {
	store   ReminderStore
	sender  TextSender
	replies config.ReplyTuning
	loc     *time.Location
	now     func() time.Time
	log     *logger.Logger
}

// NewReminderSender formats visit times in loc, UTC when nil.
func NewReminderSender(store ReminderStore, sender TextSender, replies config.ReplyTuning, loc *time.Location, log *logger.Logger) *ReminderSender {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderSender{
		store:   store,
		sender:  sender,
		replies: replies,
		loc:     loc,
		now:     time.Now,
		log:     log.WithComponent("reminders"),
	}
}

// WithClock overrides the time source.
func (s *ReminderSender) WithClock(now func() time.Time) *ReminderSender {
	s.now = now
	return s
}

// Deliver sends reminder id unless it was cancelled, already sent, or the
// visit has started. A send failure leaves the status unchanged and is returned.
func (s *ReminderSender) Deliver(ctx context.Context, id uuid.UUID) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !isOpen(r.Status) {
		s.log.Debug("reminder skipped", "id", id, "status", r.Status)
		return nil
	}
	now := s.now().UTC()
	if !now.Before(r.VisitAt) {
		return s.store.MarkFailed(ctx, id, "visit already started")
	}

	if err := s.sender.SendMessage(ctx, r.PhoneNumber, s.Render(r)); err != nil {
		s.log.WithPhone(r.PhoneNumber).CollaboratorFailure("whatsapp", "send reminder", err)
		return fmt.Errorf("send reminder %s: %w", id, err)
	}
	if err := s.store.MarkSent(ctx, id, now); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	s.log.WithPhone(r.PhoneNumber).Info("reminder sent", "id", id, "kind", r.Kind)
	return nil
}

// Enqueue delivers immediately; used when no job queue is configured.
func (s *ReminderSender) Enqueue(ctx context.Context, r Reminder) error {
	return s.Deliver(ctx, r.ID)
}

// Render builds the reminder text.
func (s *ReminderSender) Render(r Reminder) string {
	visit := r.VisitAt.In(s.loc)
	tmpl := s.replies.ReminderHoursBefore
	when := visit.Format("15:04")
	if r.Kind == ReminderDayBefore {
		tmpl = s.replies.ReminderDayBefore
		when = visit.Format("02/01 às 15:04")
	}
	name := r.CustomerName
	if name == "" {
		name = "cliente"
	}
	property := r.PropertyTitle
	if property == "" && r.PropertyID > 0 {
		property = fmt.Sprintf("#%d", r.PropertyID)
	}
	return config.RenderReply(tmpl, map[string]string{
		"name":     name,
		"property": property,
		"when":     when,
	})
}

// Poller claims due reminders on an interval and hands them to an Enqueuer.
// lookahead lets a scheduling queue receive reminders before they are due.
type Poller struct {
	store     ReminderStore
	enqueuer  Enqueuer
	interval  time.Duration
	lookahead time.Duration
	now       func() time.Time
	log       *logger.Logger
}

func NewPoller(store ReminderStore, enqueuer Enqueuer, interval, lookahead time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		store:     store,
		enqueuer:  enqueuer,
		interval:  interval,
		lookahead: lookahead,
		now:       time.Now,
		log:       log.WithComponent("reminders.poller"),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.Tick(ctx)
	}
}

// Tick runs one claim and dispatch cycle and returns how many reminders were handed off.
func (p *Poller) Tick(ctx context.Context) int {
	claimed, err := p.store.ClaimDue(ctx, p.now().UTC().Add(p.lookahead), 50)
	if err != nil {
		p.log.Warn("reminder claim failed", "error", err)
		return 0
	}

	handed := 0
	for _, r := range claimed {
		if err := p.enqueuer.Enqueue(ctx, r); err != nil {
			if markErr := p.store.MarkPending(ctx, r.ID, err.Error()); markErr != nil {
				p.log.Warn("reminder release failed", "id", r.ID, "error", markErr)
			}
			continue
		}
		handed++
	}
	return handed
}
