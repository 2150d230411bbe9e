package scoring

import (
	"sort"
	"strings"
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
)

// scoreVersion tracks the scoring model for debugging and analysis.
// Bump this when changing scoring logic significantly.
const scoreVersion = "2026-re-v1"

// Indicator names. They are stable identifiers stored on the lead.
const (
	IndicatorName             = "name_known"
	IndicatorEmail            = "email_known"
	IndicatorBudget           = "budget_defined"
	IndicatorTimeframe        = "timeframe_defined"
	IndicatorUrgent           = "urgent_timeframe"
	IndicatorFinancing        = "financing_defined"
	IndicatorFinancingReady   = "financing_ready"
	IndicatorLocation         = "location_defined"
	IndicatorPropertyType     = "property_type_defined"
	IndicatorTransactionType  = "transaction_type_defined"
	IndicatorMessages         = "messages_exchanged"
	IndicatorPropertyEngaged  = "property_engaged"
	IndicatorSchedulingIntent = "scheduling_intent"
	IndicatorVisitBooked      = "visit_booked"
	IndicatorVisitCancelled   = "visit_cancelled"
	IndicatorStale            = "stale_inactivity"
	IndicatorDormant          = "dormant"
)

// Result is the outcome of one scoring pass.
type Result struct {
	Score      int
	Quality    domain.Quality
	Indicators []string
	Factors    map[string]int
	Version    string
}

// Scorer computes lead quality from a lead and its (optional) session.
// It is pure: the same inputs and the same now always give the same Result.
type Scorer struct {
	w config.ScoringTuning
}

// New creates a scorer with the given weights and thresholds.
func New(weights config.ScoringTuning) *Scorer {
	return &Scorer{w: weights}
}

// Score evaluates lead with session (may be nil) as of now.
func (s *Scorer) Score(lead *domain.Lead, session *conversation.Session, now time.Time) Result {
	factors := make(map[string]int)
	total := s.w.Base

	total += s.scoreContact(lead, factors)
	total += s.scoreQualification(lead.TypebotData, factors)
	total += s.scoreEngagement(lead, factors)
	total += s.scoreScheduling(lead, session, factors)
	total += s.scoreInactivity(lead, session, now, factors)

	score := clampScore(total)
	return Result{
		Score:      score,
		Quality:    s.tier(score),
		Indicators: indicators(factors),
		Factors:    factors,
		Version:    scoreVersion,
	}
}

func (s *Scorer) tier(score int) domain.Quality {
	switch {
	case score >= s.w.HotThreshold:
		return domain.QualityHot
	case score >= s.w.WarmThreshold:
		return domain.QualityWarm
	default:
		return domain.QualityCold
	}
}

func (s *Scorer) scoreContact(lead *domain.Lead, factors map[string]int) int {
	delta := 0
	if filled(lead.Name) {
		delta += addFactor(factors, IndicatorName, s.w.Name)
	}
	if filled(lead.Email) {
		delta += addFactor(factors, IndicatorEmail, s.w.Email)
	}
	return delta
}

// scoreQualification rewards explicit budget, timeframe and financing data,
// the strongest purchase-readiness signals the form captures.
func (s *Scorer) scoreQualification(data *domain.TypebotData, factors map[string]int) int {
	if data == nil {
		return 0
	}
	delta := 0
	if data.HasBudget() {
		delta += addFactor(factors, IndicatorBudget, s.w.Budget)
	}
	if filled(data.Timeframe) {
		delta += addFactor(factors, IndicatorTimeframe, s.w.Timeframe)
		if containsAny(strings.ToLower(*data.Timeframe), s.w.UrgentKeywords) {
			delta += addFactor(factors, IndicatorUrgent, s.w.UrgentTimeframe)
		}
	}
	if filled(data.Financing) {
		delta += addFactor(factors, IndicatorFinancing, s.w.Financing)
		if containsAny(strings.ToLower(*data.Financing), s.w.FinancingKeywords) {
			delta += addFactor(factors, IndicatorFinancingReady, s.w.ApprovedFinancing)
		}
	}
	if filled(data.Location) {
		delta += addFactor(factors, IndicatorLocation, s.w.Location)
	}
	if filled(data.PropertyType) {
		delta += addFactor(factors, IndicatorPropertyType, s.w.PropertyType)
	}
	if filled(data.TransactionType) {
		delta += addFactor(factors, IndicatorTransactionType, s.w.TransactionType)
	}
	return delta
}

func (s *Scorer) scoreEngagement(lead *domain.Lead, factors map[string]int) int {
	delta := 0
	points := lead.TotalMessages * s.w.PerMessage
	if s.w.MessagesCap > 0 && points > s.w.MessagesCap {
		points = s.w.MessagesCap
	}
	if points > 0 {
		delta += addFactor(factors, IndicatorMessages, points)
	}
	if lead.PropertyID != nil {
		delta += addFactor(factors, IndicatorPropertyEngaged, s.w.PropertyEngaged)
	}
	return delta
}

// scoreScheduling combines the durable lead tags with the live session state
// so intent expressed in an expired session still counts.
func (s *Scorer) scoreScheduling(lead *domain.Lead, session *conversation.Session, factors map[string]int) int {
	state := conversation.StateNone
	if session != nil {
		state = session.State()
	}

	intent := lead.HasTag(domain.TagSchedulingIntent) || state != conversation.StateNone
	booked := state == conversation.StateBooked || (lead.HasTag(domain.TagVisitBooked) && state != conversation.StateCancelled)
	cancelled := state == conversation.StateCancelled || (lead.HasTag(domain.TagVisitCancelled) && !booked)

	delta := 0
	if intent || booked {
		delta += addFactor(factors, IndicatorSchedulingIntent, s.w.SchedulingIntent)
	}
	if booked {
		delta += addFactor(factors, IndicatorVisitBooked, s.w.VisitBooked)
	} else if cancelled {
		delta += addFactor(factors, IndicatorVisitCancelled, s.w.VisitCancelled)
	}
	return delta
}

func (s *Scorer) scoreInactivity(lead *domain.Lead, session *conversation.Session, now time.Time, factors map[string]int) int {
	last := lead.CreatedAt
	if lead.LastActivity != nil && lead.LastActivity.After(last) {
		last = *lead.LastActivity
	}
	if session != nil && session.LastActivity.After(last) {
		last = session.LastActivity
	}
	if last.IsZero() {
		return 0
	}

	idle := now.Sub(last)
	switch {
	case s.w.DormantAfter > 0 && idle > s.w.DormantAfter:
		return addFactor(factors, IndicatorDormant, s.w.DormantPenalty)
	case s.w.StaleAfter > 0 && idle > s.w.StaleAfter:
		return addFactor(factors, IndicatorStale, s.w.StalePenalty)
	}
	return 0
}

func addFactor(factors map[string]int, key string, value int) int {
	if value == 0 {
		return 0
	}
	factors[key] = value
	return value
}

func indicators(factors map[string]int) []string {
	out := make([]string, 0, len(factors))
	for k := range factors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func filled(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// containsAny checks if s contains any of the keywords.
func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func clampScore(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
