// Package service applies lead mutations: merge, rescore, persist, announce.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/events"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/scoring"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/keylock"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// SessionReader loads the live session used as scoring input.
type SessionReader interface {
	Get(ctx context.Context, phoneNumber string) (*conversation.Session, error)
}

// Mutation is one change to a lead from any channel.
type Mutation struct {
	PhoneNumber string
	// Source is recorded only when the lead is created.
	Source domain.Source
	Update domain.Update
	// Session is the caller's current session. When nil it is loaded from
	// the SessionReader, if any.
	Session *conversation.Session
}

// Result reports what Apply did.
type Result struct {
	Lead            *domain.Lead
	Created         bool
	PreviousQuality domain.Quality
}

// Service is the single write path for leads.
type Service struct {
	repo     repository.LeadsRepository
	sessions SessionReader
	scorer   *scoring.Scorer
	locker   keylock.Locker
	bus      events.Bus
	now      func() time.Time
	log      *logger.Logger
}

// New creates the lead service. sessions and bus may be nil.
func New(repo repository.LeadsRepository, sessions SessionReader, scorer *scoring.Scorer, locker keylock.Locker, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		scorer:   scorer,
		locker:   locker,
		bus:      bus,
		now:      time.Now,
		log:      log.WithComponent("leads"),
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Apply merges m into the stored lead (creating it on first contact) and
// recomputes the score synchronously. The caller must hold the per-phone
// critical section.
func (s *Service) Apply(ctx context.Context, m Mutation) (Result, error) {
	if m.PhoneNumber == "" {
		return Result{}, errors.New("lead mutation without phone number")
	}
	now := s.now().UTC()

	lead, err := s.repo.Get(ctx, m.PhoneNumber)
	created := false
	switch {
	case errors.Is(err, domain.ErrLeadNotFound):
		source := m.Source
		if !source.Valid() {
			source = domain.SourceManual
		}
		lead = domain.NewLead(m.PhoneNumber, source, now)
		created = true
	case err != nil:
		return Result{}, fmt.Errorf("load lead: %w", err)
	}

	previous := lead.Quality
	lead.Apply(m.Update, now)

	session := m.Session
	if session == nil && s.sessions != nil {
		loaded, err := s.sessions.Get(ctx, m.PhoneNumber)
		if err != nil && !errors.Is(err, conversation.ErrSessionNotFound) {
			s.log.Warn("session unavailable for scoring", "error", err)
		}
		session = loaded
	}

	scored := s.scorer.Score(lead, session, now)
	lead.Score = scored.Score
	lead.Quality = scored.Quality
	lead.Indicators = scored.Indicators
	lead.LastEvaluated = now

	if err := s.repo.Save(ctx, lead); err != nil {
		return Result{}, fmt.Errorf("save lead: %w", err)
	}

	s.announce(ctx, lead, created, previous)
	return Result{Lead: lead, Created: created, PreviousQuality: previous}, nil
}

// ApplyLocked acquires the per-phone critical section around Apply.
func (s *Service) ApplyLocked(ctx context.Context, m Mutation) (Result, error) {
	unlock, err := s.locker.Lock(ctx, m.PhoneNumber)
	if err != nil {
		return Result{}, fmt.Errorf("lock lead %s: %w", logger.MaskPhone(m.PhoneNumber), err)
	}
	defer unlock()
	return s.Apply(ctx, m)
}

// Get returns the stored lead.
func (s *Service) Get(ctx context.Context, phoneNumber string) (*domain.Lead, error) {
	return s.repo.Get(ctx, phoneNumber)
}

// List returns leads ordered by score.
func (s *Service) List(ctx context.Context, params repository.ListParams) ([]domain.Lead, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) announce(ctx context.Context, lead *domain.Lead, created bool, previous domain.Quality) {
	if s.bus == nil {
		return
	}
	if created {
		s.bus.Publish(ctx, events.LeadCaptured{
			BaseEvent:   events.NewBaseEvent(),
			PhoneNumber: lead.PhoneNumber,
			Source:      string(lead.Source),
			Name:        lead.DisplayName(),
		})
	}
	if lead.Quality != previous && !(created && lead.Quality == domain.QualityCold) {
		s.bus.Publish(ctx, events.LeadQualityChanged{
			BaseEvent:       events.NewBaseEvent(),
			PhoneNumber:     lead.PhoneNumber,
			Name:            lead.DisplayName(),
			Score:           lead.Score,
			PreviousQuality: string(previous),
			Quality:         string(lead.Quality),
			Indicators:      lead.Indicators,
		})
	}
}
