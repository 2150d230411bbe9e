package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/calendly"
	catalogdomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
	catalogrepo "github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/events"
	leaddomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	leadrepo "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/scoring"
	leadservice "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/keylock"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
)

const customer = "5511987654321"

type fakeLinks struct {
	mu    sync.Mutex
	err   error
	calls []calendly.BookingRequest
}

func (f *fakeLinks) CreateBookingLink(_ context.Context, req calendly.BookingRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return "https://calendly.com/d/abc?utm_content=" + req.PhoneNumber, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}
func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	orch      *Orchestrator
	sessions  *conversation.MemoryStore
	leads     *leadrepo.MemoryRepository
	links     *fakeLinks
	reminders *MemoryReminders
	bus       *recordingBus
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.sessions = conversation.NewMemoryStore(24 * time.Hour).WithClock(clock)
	f.leads = leadrepo.NewMemory()
	f.links = &fakeLinks{}
	f.reminders = NewMemoryReminders()
	f.bus = &recordingBus{}

	locker := keylock.NewLocal()
	leadSvc := leadservice.New(f.leads, f.sessions, scoring.New(config.DefaultTuning().Scoring), locker, f.bus, logger.Discard()).WithClock(clock)
	catalog := catalogrepo.NewStatic(catalogdomain.Property{ID: 125, Title: "Casa Jardim Paulista", Active: true})

	f.orch = NewOrchestrator(Deps{
		Sessions:  f.sessions,
		Leads:     leadSvc,
		Locker:    locker,
		Resolver:  catalog,
		Links:     f.links,
		Reminders: f.reminders,
		Phone:     phone.NewNormalizer("BR"),
		Bus:       f.bus,
		Log:       logger.Discard(),
	}).WithClock(clock)
	return f
}

func (f *fixture) session(t *testing.T) *conversation.Session {
	t.Helper()
	s, err := f.sessions.Get(context.Background(), customer)
	require.NoError(t, err)
	return s
}

func (f *fixture) lead(t *testing.T) *leaddomain.Lead {
	t.Helper()
	l, err := f.leads.Get(context.Background(), customer)
	require.NoError(t, err)
	return l
}

func visitRequest() VisitRequest {
	return VisitRequest{PhoneNumber: customer, CustomerName: "Ana", PropertyID: 125, Source: leaddomain.SourceManual}
}

func TestRequestVisitSendsLink(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.RequestVisit(context.Background(), visitRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, OutcomeLinkSent, res.Outcome)
	assert.Equal(t, "Casa Jardim Paulista", res.PropertyTitle)
	assert.Contains(t, res.SchedulingLink, customer)

	s := f.session(t)
	assert.Equal(t, conversation.StateLinkSent, s.State())
	require.NotNil(t, s.Visit)
	assert.Equal(t, res.SchedulingLink, s.Visit.Link)

	lead := f.lead(t)
	assert.Equal(t, leaddomain.SourceManual, lead.Source)
	assert.True(t, lead.HasTag(leaddomain.TagSchedulingIntent))
	require.NotNil(t, lead.PropertyID)
	assert.Equal(t, 125, *lead.PropertyID)

	require.Len(t, f.links.calls, 1)
	assert.Equal(t, "125", f.links.calls[0].PropertyID)
	assert.Contains(t, f.bus.names(), events.VisitLinkSent{}.EventName())
}

func TestRequestVisitUnknownProperty(t *testing.T) {
	f := newFixture(t)
	req := visitRequest()
	req.PropertyID = 999

	res, err := f.orch.RequestVisit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, OutcomePropertyNotFound, res.Outcome)
	assert.False(t, res.Success)
	assert.Empty(t, f.links.calls)

	_, err = f.sessions.Get(context.Background(), customer)
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
}

func TestRequestVisitLinkFailureStaysRequested(t *testing.T) {
	f := newFixture(t)
	f.links.err = errors.New("calendly 503")

	res, err := f.orch.RequestVisit(context.Background(), visitRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLinkFailed, res.Outcome)
	assert.Contains(t, res.Error, "calendly 503")
	assert.Equal(t, conversation.StateRequested, f.session(t).State())
	assert.Len(t, f.links.calls, 1, "no automatic retry")
}

func TestRequestVisitWhenBooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.RequestVisit(ctx, visitRequest())
	require.NoError(t, err)
	_, err = f.orch.ReconcileCalendarEvent(ctx, calendly.Event{Name: calendly.EventInviteeCreated, Outcome: calendly.OutcomeBooked, RawPhone: customer, InviteeURI: "i1"})
	require.NoError(t, err)

	res, err := f.orch.RequestVisit(ctx, visitRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyBooked, res.Outcome)
	assert.Len(t, f.links.calls, 1)
	assert.Equal(t, conversation.StateBooked, f.session(t).State())
}

func TestReconcileBookedCreatesReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.RequestVisit(ctx, visitRequest())
	require.NoError(t, err)

	start := f.now.Add(72 * time.Hour)
	res, err := f.orch.ReconcileCalendarEvent(ctx, calendly.Event{
		Name:        calendly.EventInviteeCreated,
		Outcome:     calendly.OutcomeBooked,
		RawPhone:    "+55 (11) 98765-4321",
		PropertyID:  "125",
		InviteeName: "Ana Souza",
		StartTime:   &start,
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, conversation.StateBooked, res.State)
	assert.Equal(t, 2, res.Reminders)

	pending, err := f.reminders.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, start.Add(-24*time.Hour), pending[0].RemindAt)
	assert.Equal(t, start.Add(-2*time.Hour), pending[1].RemindAt)

	lead := f.lead(t)
	assert.True(t, lead.HasTag(leaddomain.TagVisitBooked))
	assert.Equal(t, "Ana Souza", lead.DisplayName())
	assert.Contains(t, f.bus.names(), events.VisitBooked{}.EventName())
}

func TestReconcileCancelFromLinkSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.RequestVisit(ctx, visitRequest())
	require.NoError(t, err)
	require.Equal(t, conversation.StateLinkSent, f.session(t).State())

	res, err := f.orch.ReconcileCalendarEvent(ctx, calendly.Event{
		Name:         calendly.EventInviteeCanceled,
		Outcome:      calendly.OutcomeCancelled,
		RawPhone:     customer,
		CancelReason: "imprevisto",
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, conversation.StateCancelled, f.session(t).State())

	lead := f.lead(t)
	assert.True(t, lead.HasTag(leaddomain.TagVisitCancelled))
	assert.Contains(t, f.bus.names(), events.VisitCancelled{}.EventName())

	// a new request starts a fresh cycle
	res2, err := f.orch.RequestVisit(ctx, visitRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLinkSent, res2.Outcome)
	assert.False(t, f.lead(t).HasTag(leaddomain.TagVisitCancelled))
}

func TestReconcileCancelRemovesReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := f.now.Add(48 * time.Hour)
	_, err := f.orch.ReconcileCalendarEvent(ctx, calendly.Event{Name: calendly.EventInviteeCreated, Outcome: calendly.OutcomeBooked, RawPhone: customer, StartTime: &start})
	require.NoError(t, err)

	_, err = f.orch.ReconcileCalendarEvent(ctx, calendly.Event{Name: calendly.EventInviteeCanceled, Outcome: calendly.OutcomeCancelled, RawPhone: customer})
	require.NoError(t, err)

	pending, err := f.reminders.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconcileUnmatchedEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orch.ReconcileCalendarEvent(ctx, calendly.Event{Name: "invitee_no_show.created", Outcome: calendly.OutcomeIgnored})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	res, err = f.orch.ReconcileCalendarEvent(ctx, calendly.Event{Name: calendly.EventInviteeCreated, Outcome: calendly.OutcomeBooked})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "missing customer phone", res.Reason)
}

func TestReconcileCancelWithoutCycleOnlyTagsLead(t *testing.T) {
	f := newFixture(t)
	res, err := f.orch.ReconcileCalendarEvent(context.Background(), calendly.Event{Name: calendly.EventInviteeCanceled, Outcome: calendly.OutcomeCancelled, RawPhone: customer})
	require.NoError(t, err)
	assert.Equal(t, conversation.StateNone, res.State)
	assert.True(t, f.lead(t).HasTag(leaddomain.TagVisitCancelled))
}

func TestReconcileRescheduleKeepsNewBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.RequestVisit(ctx, visitRequest())
	require.NoError(t, err)

	first := f.now.Add(48 * time.Hour)
	second := f.now.Add(96 * time.Hour)
	_, err = f.orch.ReconcileCalendarEvent(ctx, calendly.Event{Name: calendly.EventInviteeCreated, Outcome: calendly.OutcomeBooked, RawPhone: customer, InviteeURI: "i1", StartTime: &first})
	require.NoError(t, err)
	_, err = f.orch.ReconcileCalendarEvent(ctx, calendly.Event{Name: calendly.EventInviteeCreated, Outcome: calendly.OutcomeBooked, RawPhone: customer, InviteeURI: "i2", StartTime: &second})
	require.NoError(t, err)

	res, err := f.orch.ReconcileCalendarEvent(ctx, calendly.Event{Name: calendly.EventInviteeCanceled, Outcome: calendly.OutcomeCancelled, RawPhone: customer, InviteeURI: "i1", Rescheduled: true})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "rescheduled", res.Reason)

	assert.Equal(t, conversation.StateBooked, f.session(t).State())
	pending, err := f.reminders.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, r := range pending {
		assert.True(t, r.RemindAt.After(first), "reminders follow the new visit time")
	}

	lead := f.lead(t)
	assert.True(t, lead.HasTag(leaddomain.TagVisitBooked))
	assert.False(t, lead.HasTag(leaddomain.TagVisitCancelled))
	assert.NotContains(t, f.bus.names(), events.VisitCancelled{}.EventName())
}
