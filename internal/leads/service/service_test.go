package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/events"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/scoring"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/keylock"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

func strPtr(s string) *string { return &s }

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

func newService(t *testing.T) (*Service, *repository.MemoryRepository, *conversation.MemoryStore, *recordingBus) {
	t.Helper()
	repo := repository.NewMemory()
	sessions := conversation.NewMemoryStore(24 * time.Hour)
	bus := &recordingBus{}
	svc := New(repo, sessions, scoring.New(config.DefaultTuning().Scoring), keylock.NewLocal(), bus, logger.Discard())
	return svc, repo, sessions, bus
}

func TestApplyCreatesOnceAndKeepsSource(t *testing.T) {
	svc, _, _, bus := newService(t)
	ctx := context.Background()

	res, err := svc.ApplyLocked(ctx, Mutation{PhoneNumber: "5511987654321", Source: domain.SourceTypebot, Update: domain.Update{Name: strPtr("Ana")}})
	require.NoError(t, err)
	assert.True(t, res.Created)

	res, err = svc.ApplyLocked(ctx, Mutation{PhoneNumber: "5511987654321", Source: domain.SourceWhatsApp, Update: domain.Update{AddMessages: 1}})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, domain.SourceTypebot, res.Lead.Source)
	assert.Equal(t, 1, res.Lead.TotalMessages)
	assert.Equal(t, []string{"leads.lead.captured"}, bus.names())
}

func TestApplyTypebotNullEmailDoesNotClear(t *testing.T) {
	svc, repo, _, _ := newService(t)
	ctx := context.Background()
	phone := "5511987654321"

	_, err := svc.ApplyLocked(ctx, Mutation{PhoneNumber: phone, Source: domain.SourceWhatsApp, Update: domain.Update{Email: strPtr("ana@example.com")}})
	require.NoError(t, err)

	_, err = svc.ApplyLocked(ctx, Mutation{PhoneNumber: phone, Source: domain.SourceTypebot, Update: domain.Update{Email: nil, TypebotData: &domain.TypebotData{Budget: strPtr("300 mil")}}})
	require.NoError(t, err)

	stored, err := repo.Get(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", *stored.Email)
	assert.Equal(t, "300 mil", *stored.TypebotData.Budget)
}

func TestApplyRescoresUsingStoredSession(t *testing.T) {
	svc, _, sessions, bus := newService(t)
	ctx := context.Background()
	phone := "5511987654321"

	res, err := svc.ApplyLocked(ctx, Mutation{PhoneNumber: phone, Source: domain.SourceWhatsApp})
	require.NoError(t, err)
	before := res.Lead.Score

	sess := conversation.New(phone, time.Now())
	require.NoError(t, sess.Transition(conversation.StateRequested))
	require.NoError(t, sessions.Save(ctx, sess))

	res, err = svc.ApplyLocked(ctx, Mutation{PhoneNumber: phone, Update: domain.Update{Name: strPtr("Ana")}})
	require.NoError(t, err)
	assert.Equal(t, domain.QualityWarm, res.Lead.Quality)
	assert.Greater(t, res.Lead.Score, before)
	assert.Contains(t, res.Lead.Indicators, scoring.IndicatorSchedulingIntent)
	assert.Contains(t, bus.names(), "leads.lead.quality_changed")
}

func TestApplyRejectsEmptyPhone(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.Apply(context.Background(), Mutation{})
	assert.Error(t, err)
}

func TestConcurrentAppliesSerialize(t *testing.T) {
	svc, repo, _, _ := newService(t)
	ctx := context.Background()
	phone := "5511987654321"

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyLocked(ctx, Mutation{PhoneNumber: phone, Source: domain.SourceWhatsApp, Update: domain.Update{AddMessages: 1}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.Get(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, 25, stored.TotalMessages)
}
