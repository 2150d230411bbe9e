package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
)

func strPtr(s string) *string { return &s }

var now = time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)

func newScorer() *Scorer { return New(config.DefaultTuning().Scoring) }

func freshLead() *domain.Lead {
	return domain.NewLead("5511987654321", domain.SourceWhatsApp, now.Add(-time.Hour))
}

func TestScoreIsDeterministic(t *testing.T) {
	s := newScorer()
	lead := freshLead()
	lead.Apply(domain.Update{
		Name:        strPtr("Ana"),
		TypebotData: &domain.TypebotData{Budget: strPtr("600 mil"), Timeframe: strPtr("imediato"), Financing: strPtr("aprovado")},
		AddMessages: 4,
	}, now)
	sess := conversation.New(lead.PhoneNumber, now.Add(-time.Minute))

	first := s.Score(lead, sess, now)
	for i := 0; i < 20; i++ {
		again := s.Score(lead, sess, now)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.Quality, again.Quality)
		assert.Equal(t, first.Indicators, again.Indicators)
	}
	assert.IsNonDecreasing(t, first.Indicators)
}

func TestScoreTiers(t *testing.T) {
	s := newScorer()

	cold := freshLead()
	assert.Equal(t, domain.QualityCold, s.Score(cold, nil, now).Quality)

	warm := freshLead()
	warm.Apply(domain.Update{
		Name:        strPtr("Bruno"),
		TypebotData: &domain.TypebotData{Budget: strPtr("400 mil"), Timeframe: strPtr("6 meses"), Location: strPtr("Centro")},
	}, now)
	res := s.Score(warm, nil, now)
	assert.Equal(t, domain.QualityWarm, res.Quality, "score %d", res.Score)

	hot := freshLead()
	hot.Apply(domain.Update{
		Name:        strPtr("Carla"),
		Email:       strPtr("carla@example.com"),
		TypebotData: &domain.TypebotData{Budget: strPtr("1 mi"), Timeframe: strPtr("urgente"), Financing: strPtr("à vista")},
		AddMessages: 6,
		AddTags:     []string{domain.TagSchedulingIntent},
	}, now)
	res = s.Score(hot, nil, now)
	assert.Equal(t, domain.QualityHot, res.Quality, "score %d", res.Score)
	assert.Contains(t, res.Indicators, IndicatorSchedulingIntent)
	assert.Contains(t, res.Indicators, IndicatorUrgent)
	assert.Contains(t, res.Indicators, IndicatorFinancingReady)
}

func TestSchedulingIntentFromSessionState(t *testing.T) {
	s := newScorer()
	lead := freshLead()

	sess := conversation.New(lead.PhoneNumber, now)
	base := s.Score(lead, sess, now).Score

	_ = sess.Transition(conversation.StateRequested)
	withIntent := s.Score(lead, sess, now)
	assert.Equal(t, base+config.DefaultTuning().Scoring.SchedulingIntent, withIntent.Score)

	_ = sess.Transition(conversation.StateLinkSent)
	_ = sess.Transition(conversation.StateBooked)
	booked := s.Score(lead, sess, now)
	assert.Contains(t, booked.Indicators, IndicatorVisitBooked)

	_ = sess.Transition(conversation.StateCancelled)
	cancelled := s.Score(lead, sess, now)
	assert.Contains(t, cancelled.Indicators, IndicatorVisitCancelled)
	assert.NotContains(t, cancelled.Indicators, IndicatorVisitBooked)
	assert.Less(t, cancelled.Score, booked.Score)
}

func TestMessagePointsAreCapped(t *testing.T) {
	s := newScorer()
	lead := freshLead()
	lead.TotalMessages = 500
	res := s.Score(lead, nil, now)
	assert.Equal(t, config.DefaultTuning().Scoring.MessagesCap, res.Factors[IndicatorMessages])
}

func TestInactivityPenalties(t *testing.T) {
	s := newScorer()
	w := config.DefaultTuning().Scoring

	lead := domain.NewLead("5511987654321", domain.SourceTypebot, now.Add(-10*24*time.Hour))
	res := s.Score(lead, nil, now)
	assert.Equal(t, w.StalePenalty, res.Factors[IndicatorStale])

	lead = domain.NewLead("5511987654321", domain.SourceTypebot, now.Add(-40*24*time.Hour))
	res = s.Score(lead, nil, now)
	assert.Equal(t, w.DormantPenalty, res.Factors[IndicatorDormant])
	assert.NotContains(t, res.Indicators, IndicatorStale)

	recent := now.Add(-time.Hour)
	sess := conversation.New(lead.PhoneNumber, recent)
	res = s.Score(lead, sess, now)
	assert.NotContains(t, res.Indicators, IndicatorDormant)
}

func TestScoreClamped(t *testing.T) {
	w := config.DefaultTuning().Scoring
	w.Base = 500
	assert.Equal(t, 100, New(w).Score(freshLead(), nil, now).Score)

	w.Base = -500
	assert.Equal(t, 0, New(w).Score(freshLead(), nil, now).Score)
}
