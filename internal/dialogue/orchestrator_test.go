package dialogue

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
	catalogservice "github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	leaddomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	leadrepo "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/scoring"
	leadservice "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/sanitizer"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/scheduling"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/keylock"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
)

const customer = "5511987654321"

type sent struct {
	text    string
	media   string
	caption string
}

type fakeMessenger struct {
	mu   sync.Mutex
	err  error
	sent []sent
}

func (m *fakeMessenger) SendMessage(_ context.Context, _ string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sent{text: text})
	return nil
}

func (m *fakeMessenger) SendMedia(_ context.Context, _ string, url, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sent{media: url, caption: caption})
	return nil
}

type fakeLinks struct {
	err error
}

func (f fakeLinks) CreateBookingLink(_ context.Context, req calendly.BookingRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://calendly.com/bs/visita?utm_content=" + req.PhoneNumber, nil
}

type fixture struct {
	orch      *Orchestrator
	sessions  *conversation.MemoryStore
	leads     *leadrepo.MemoryRepository
	messenger *fakeMessenger
	now       time.Time
}

func newFixture(t *testing.T, gen Generator, links fakeLinks) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), messenger: &fakeMessenger{}}
	clock := func() time.Time { return f.now }
	tuning := config.DefaultTuning()

	f.sessions = conversation.NewMemoryStore(24 * time.Hour).WithClock(clock)
	f.leads = leadrepo.NewMemory()
	locker := keylock.NewLocal()
	leads := leadservice.New(f.leads, f.sessions, scoring.New(tuning.Scoring), locker, nil, logger.Discard()).WithClock(clock)

	source := catalogrepo.NewStatic(
		catalogdomain.Property{ID: 125, Title: "Casa Jardim Paulista", City: "São Paulo", Price: 850000, Active: true,
			Images: []string{"https://img.example.com/125-1.jpg", "https://img.example.com/125-2.jpg"}},
		catalogdomain.Property{ID: 7, Title: "Apartamento Centro", Active: true},
	)
	catalog := catalogservice.New(catalogservice.NewCache(source, time.Minute, logger.Discard()), source, nil, logger.Discard())

	sched := scheduling.NewOrchestrator(scheduling.Deps{
		Sessions: f.sessions,
		Leads:    leads,
		Locker:   locker,
		Resolver: catalog,
		Links:    links,
		Phone:    phone.NewNormalizer("BR"),
		Log:      logger.Discard(),
	}).WithClock(clock)

	f.orch = NewOrchestrator(Deps{
		Sessions:      f.sessions,
		Leads:         leads,
		Locker:        locker,
		Generator:     gen,
		Catalog:       catalog,
		Scheduler:     sched,
		Sanitizer:     sanitizer.New(tuning.Sanitizer),
		Messenger:     f.messenger,
		Replies:       tuning.Replies,
		FallbackPhone: "(11) 4000-1234",
		Log:           logger.Discard(),
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

func fixed(gen Generation) Generator {
	return GeneratorFunc(func(context.Context, GenerationContext) (Generation, error) {
		return gen, nil
	})
}

func TestScheduleVisitFromWhatsAppMessage(t *testing.T) {
	var seen Generation
	gen := GeneratorFunc(func(ctx context.Context, in GenerationContext) (Generation, error) {
		out, err := RulesGenerator{}.Generate(ctx, in)
		seen = out
		return out, err
	})
	f := newFixture(t, gen, fakeLinks{})

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "Quero agendar visita no imóvel 125")
	require.NoError(t, err)

	assert.True(t, seen.Scheduling.WantsToSchedule)
	assert.Equal(t, 125, seen.Scheduling.PropertyID)

	assert.Equal(t, BranchScheduling, out.Branch)
	require.NotNil(t, out.Scheduling)
	assert.Equal(t, scheduling.OutcomeLinkSent, out.Scheduling.Outcome)
	assert.Contains(t, out.ReplyText, "https://calendly.com/bs/visita")
	assert.Contains(t, out.ReplyText, "Casa Jardim Paulista")

	s := f.session(t)
	assert.Equal(t, conversation.StateLinkSent, s.State())
	require.Len(t, s.History, 2)
	assert.Equal(t, conversation.RoleAgent, s.History[1].Role)
	require.NotNil(t, s.ActivePropertyID)
	assert.Equal(t, 125, *s.ActivePropertyID)

	l := f.lead(t)
	assert.Equal(t, 1, l.TotalMessages)
	assert.True(t, l.HasTag(leaddomain.TagSchedulingIntent))
	assert.Equal(t, leaddomain.SourceWhatsApp, l.Source)

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, out.ReplyText, f.messenger.sent[0].text)
}

func TestGenerationFailureDegradesToApology(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, GenerationContext) (Generation, error) {
		return Generation{}, context.DeadlineExceeded
	})
	f := newFixture(t, gen, fakeLinks{})

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "Olá")
	require.NoError(t, err)
	assert.Equal(t, BranchFallback, out.Branch)
	assert.Equal(t, config.DefaultTuning().Replies.GenerationFailure, out.ReplyText)

	assert.Len(t, f.session(t).History, 2)
	assert.Equal(t, 1, f.lead(t).TotalMessages)
}

func TestPropertyDetailsSendsMediaAndSuppressesLeak(t *testing.T) {
	f := newFixture(t, fixed(Generation{
		Reply:                     "Claro! Vou enviar as fotos agora mesmo.",
		ShouldSendPropertyDetails: true,
		PropertyToSend:            125,
	}), fakeLinks{})

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "Tem fotos da casa?")
	require.NoError(t, err)

	assert.Equal(t, BranchPropertyDetails, out.Branch)
	assert.Equal(t, "👍", out.ReplyText)
	require.Len(t, out.SideEffects, 1)
	effect := out.SideEffects[0]
	assert.Equal(t, EffectSendMedia, effect.Kind)
	assert.True(t, effect.Delivered)
	assert.Len(t, effect.MediaURLs, 2)

	require.Len(t, f.messenger.sent, 3)
	assert.Equal(t, "👍", f.messenger.sent[0].text)
	assert.Contains(t, f.messenger.sent[1].caption, "Casa Jardim Paulista")
	assert.Empty(t, f.messenger.sent[2].caption)

	l := f.lead(t)
	require.NotNil(t, l.PropertyID)
	assert.Equal(t, 125, *l.PropertyID)
}

func TestPropertyDetailsWithoutImagesSendsSummaryText(t *testing.T) {
	f := newFixture(t, fixed(Generation{
		Reply:                     "Este é o apartamento do centro.",
		ShouldSendPropertyDetails: true,
		PropertyToSend:            7,
	}), fakeLinks{})

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "Detalhes do 7")
	require.NoError(t, err)
	assert.Equal(t, "Este é o apartamento do centro.", out.ReplyText)
	require.Len(t, out.SideEffects, 1)
	assert.Equal(t, EffectSendText, out.SideEffects[0].Kind)
	assert.Contains(t, out.SideEffects[0].Text, "Apartamento Centro")
}

func TestUnresolvedPropertyDetailsFallsBackToPlainReply(t *testing.T) {
	f := newFixture(t, fixed(Generation{
		Reply:                     "Vou enviar as fotos do imóvel.",
		ShouldSendPropertyDetails: true,
		PropertyToSend:            999,
	}), fakeLinks{})

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "Fotos do 999")
	require.NoError(t, err)
	assert.Equal(t, BranchReply, out.Branch)
	assert.Equal(t, "Vou enviar as fotos do imóvel.", out.ReplyText)
	assert.Empty(t, out.SideEffects)
}

func TestSchedulingUnknownPropertyAsksToPick(t *testing.T) {
	f := newFixture(t, fixed(Generation{
		Reply:      "ok",
		Scheduling: SchedulingSignal{WantsToSchedule: true, PropertyID: 999},
	}), fakeLinks{})

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "Quero visitar o 999")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTuning().Replies.PickProperty, out.ReplyText)
	assert.Equal(t, conversation.StateNone, f.session(t).State())
}

func TestSchedulingWithoutPropertyAsksToPick(t *testing.T) {
	f := newFixture(t, fixed(Generation{Scheduling: SchedulingSignal{WantsToSchedule: true}}), fakeLinks{})

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "Quero agendar uma visita")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTuning().Replies.PickProperty, out.ReplyText)
}

func TestSchedulingLinkFailureOffersHumanFallback(t *testing.T) {
	f := newFixture(t, fixed(Generation{
		Scheduling: SchedulingSignal{WantsToSchedule: true, PropertyID: 125},
	}), fakeLinks{err: errors.New("calendly down")})

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "Quero agendar visita no imóvel 125")
	require.NoError(t, err)
	assert.Contains(t, out.ReplyText, "(11) 4000-1234")
	require.NotNil(t, out.Scheduling)
	assert.Equal(t, scheduling.OutcomeLinkFailed, out.Scheduling.Outcome)
	assert.Equal(t, conversation.StateRequested, f.session(t).State())
}

func TestPlainReplyMergesCustomerInfo(t *testing.T) {
	f := newFixture(t, fixed(Generation{
		Reply:        "Prazer, Carlos!",
		CustomerInfo: conversation.CustomerInfo{Name: "Carlos Lima", Email: "carlos@example.com"},
	}), fakeLinks{})

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "Meu nome é Carlos Lima, carlos@example.com")
	require.NoError(t, err)
	assert.Equal(t, BranchReply, out.Branch)

	assert.Equal(t, "Carlos Lima", f.session(t).CustomerInfo.Name)
	l := f.lead(t)
	require.NotNil(t, l.Name)
	require.NotNil(t, l.Email)
	assert.Equal(t, "Carlos Lima", *l.Name)
	assert.Equal(t, "carlos@example.com", *l.Email)
}

func TestSendFailureDoesNotFailMessage(t *testing.T) {
	f := newFixture(t, fixed(Generation{Reply: "Olá!"}), fakeLinks{})
	f.messenger.err = errors.New("evolution offline")

	out, err := f.orch.HandleInboundMessage(context.Background(), customer, "oi")
	require.NoError(t, err)
	assert.Equal(t, "Olá!", out.ReplyText)
	assert.Len(t, f.session(t).History, 2)
}

func TestEmptyMessageRejected(t *testing.T) {
	f := newFixture(t, fixed(Generation{Reply: "x"}), fakeLinks{})
	_, err := f.orch.HandleInboundMessage(context.Background(), customer, "   ")
	require.Error(t, err)
}

func TestConcurrentMessagesKeepEveryTurn(t *testing.T) {
	f := newFixture(t, fixed(Generation{Reply: "ok"}), fakeLinks{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.HandleInboundMessage(context.Background(), customer, "mensagem")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.session(t).History, 16)
	assert.Equal(t, 8, f.lead(t).TotalMessages)
}
