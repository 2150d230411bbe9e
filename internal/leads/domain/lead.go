// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// ErrLeadNotFound is returned by repositories when no lead exists for a phone number.
var ErrLeadNotFound = errors.New("lead not found")

// Quality is the tier derived from a lead's score.
type Quality string

const (
	QualityHot  Quality = "hot"
	QualityWarm Quality = "warm"
	QualityCold Quality = "cold"
)

// Source is the channel through which a lead first reached us.
type Source string

const (
	SourceWhatsApp Source = "whatsapp"
	SourceTypebot  Source = "typebot"
	SourceManual   Source = "manual"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceWhatsApp, SourceTypebot, SourceManual:
		return true
	}
	return false
}

// Lifecycle tags. They outlive the conversation session and feed the scorer.
const (
	TagSchedulingIntent = "scheduling-intent"
	TagVisitBooked      = "visit-booked"
	TagVisitCancelled   = "visit-cancelled"
)

// TypebotData is the structured qualification captured by the chat form.
type TypebotData struct {
	TransactionType *string `json:"transactionType,omitempty"`
	PropertyType    *string `json:"propertyType,omitempty"`
	Budget          *string `json:"budget,omitempty"`
	BudgetPurchase  *string `json:"budgetPurchase,omitempty"`
	BudgetRent      *string `json:"budgetRent,omitempty"`
	Location        *string `json:"location,omitempty"`
	Timeframe       *string `json:"timeframe,omitempty"`
	Financing       *string `json:"financing,omitempty"`
	Message         *string `json:"message,omitempty"`
}

// HasBudget reports whether any budget range was captured.
func (t *TypebotData) HasBudget() bool {
	return t != nil && (present(t.Budget) || present(t.BudgetPurchase) || present(t.BudgetRent))
}

// IsEmpty reports whether no attribute is populated.
func (t *TypebotData) IsEmpty() bool {
	if t == nil {
		return true
	}
	return !t.HasBudget() && !present(t.TransactionType) && !present(t.PropertyType) &&
		!present(t.Location) && !present(t.Timeframe) && !present(t.Financing) && !present(t.Message)
}

// merge copies populated fields of in over t. Blank incoming values are ignored.
func (t *TypebotData) merge(in *TypebotData) {
	if in == nil {
		return
	}
	mergeString(&t.TransactionType, in.TransactionType)
	mergeString(&t.PropertyType, in.PropertyType)
	mergeString(&t.Budget, in.Budget)
	mergeString(&t.BudgetPurchase, in.BudgetPurchase)
	mergeString(&t.BudgetRent, in.BudgetRent)
	mergeString(&t.Location, in.Location)
	mergeString(&t.Timeframe, in.Timeframe)
	mergeString(&t.Financing, in.Financing)
	mergeString(&t.Message, in.Message)
}

// Lead is the durable record of one prospective customer, keyed by the
// canonical phone number.
type Lead struct {
	PhoneNumber   string       `json:"phoneNumber"`
	Name          *string      `json:"name"`
	Email         *string      `json:"email"`
	Score         int          `json:"score"`
	Quality       Quality      `json:"quality"`
	Indicators    []string     `json:"indicators"`
	Source        Source       `json:"source"`
	TypebotData   *TypebotData `json:"typebotData,omitempty"`
	PropertyID    *int         `json:"propertyId,omitempty"`
	TotalMessages int          `json:"totalMessages"`
	Tags          []string     `json:"tags,omitempty"`
	Observations  *string      `json:"observations,omitempty"`
	LastActivity  *time.Time   `json:"lastActivity,omitempty"`
	LastEvaluated time.Time    `json:"lastEvaluated"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// NewLead creates a lead on first contact. Source is fixed from here on.
func NewLead(phoneNumber string, source Source, now time.Time) *Lead {
	return &Lead{
		PhoneNumber:   phoneNumber,
		Source:        source,
		Quality:       QualityCold,
		Indicators:    []string{},
		LastEvaluated: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Update is an incoming partial change from any channel. Nil or blank fields
// mean "no information" and never clear stored data.
type Update struct {
	Name        *string
	Email       *string
	TypebotData *TypebotData
	PropertyID  *int
	AddMessages int
	AddTags     []string
	RemoveTags  []string
	Observation *string
	ActivityAt  *time.Time
}

// Apply merges u into the lead. Score, Quality and Indicators are left for
// the scorer to recompute.
func (l *Lead) Apply(u Update, now time.Time) {
	mergeString(&l.Name, u.Name)
	mergeString(&l.Email, u.Email)

	if u.TypebotData != nil && !u.TypebotData.IsEmpty() {
		if l.TypebotData == nil {
			l.TypebotData = &TypebotData{}
		}
		l.TypebotData.merge(u.TypebotData)
	}

	if u.PropertyID != nil && *u.PropertyID > 0 {
		id := *u.PropertyID
		l.PropertyID = &id
	}

	if u.AddMessages > 0 {
		l.TotalMessages += u.AddMessages
	}

	for _, tag := range u.RemoveTags {
		l.Tags = slices.DeleteFunc(l.Tags, func(t string) bool { return t == tag })
	}
	for _, tag := range u.AddTags {
		if tag != "" && !l.HasTag(tag) {
			l.Tags = append(l.Tags, tag)
		}
	}

	if u.Observation != nil {
		l.appendObservation(*u.Observation)
	}

	if u.ActivityAt != nil && (l.LastActivity == nil || u.ActivityAt.After(*l.LastActivity)) {
		at := *u.ActivityAt
		l.LastActivity = &at
	}

	l.UpdatedAt = now
}

// HasTag reports whether the lead carries tag.
func (l *Lead) HasTag(tag string) bool {
	return slices.Contains(l.Tags, tag)
}

// DisplayName returns the name or an empty string.
func (l *Lead) DisplayName() string {
	if l.Name == nil {
		return ""
	}
	return *l.Name
}

func (l *Lead) appendObservation(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if l.Observations == nil || strings.TrimSpace(*l.Observations) == "" {
		l.Observations = &text
		return
	}
	if strings.Contains(*l.Observations, text) {
		return
	}
	joined := *l.Observations + "\n" + text
	l.Observations = &joined
}

func mergeString(dst **string, in *string) {
	if in == nil {
		return
	}
	v := strings.TrimSpace(*in)
	if v == "" {
		return
	}
	*dst = &v
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
