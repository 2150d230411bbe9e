package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestApplyNeverClearsPopulatedFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lead := NewLead("5511987654321", SourceWhatsApp, now)
	lead.Apply(Update{Name: strPtr("Ana"), Email: strPtr("ana@example.com")}, now)

	lead.Apply(Update{Name: nil, Email: nil, TypebotData: &TypebotData{Budget: strPtr("500 mil")}}, now)
	lead.Apply(Update{Email: strPtr("   ")}, now)

	require.NotNil(t, lead.Email)
	assert.Equal(t, "ana@example.com", *lead.Email)
	assert.Equal(t, "Ana", *lead.Name)
	assert.Equal(t, "500 mil", *lead.TypebotData.Budget)
}

func TestApplyOverwritesWithNewerValues(t *testing.T) {
	now := time.Now()
	lead := NewLead("5511987654321", SourceTypebot, now)
	lead.Apply(Update{Email: strPtr("old@example.com"), TypebotData: &TypebotData{Location: strPtr("Centro")}}, now)
	lead.Apply(Update{Email: strPtr("new@example.com"), TypebotData: &TypebotData{Location: strPtr("Moema"), Timeframe: strPtr("3 meses")}}, now)

	assert.Equal(t, "new@example.com", *lead.Email)
	assert.Equal(t, "Moema", *lead.TypebotData.Location)
	assert.Equal(t, "3 meses", *lead.TypebotData.Timeframe)
}

func TestApplyCountersTagsAndProperty(t *testing.T) {
	now := time.Now()
	lead := NewLead("5511987654321", SourceWhatsApp, now)

	lead.Apply(Update{AddMessages: 1, PropertyID: intPtr(125), AddTags: []string{TagSchedulingIntent}}, now)
	lead.Apply(Update{AddMessages: 1, PropertyID: intPtr(0), AddTags: []string{TagSchedulingIntent, TagVisitBooked}}, now)
	lead.Apply(Update{AddTags: []string{TagVisitCancelled}, RemoveTags: []string{TagVisitBooked}}, now)

	assert.Equal(t, 2, lead.TotalMessages)
	assert.Equal(t, 125, *lead.PropertyID)
	assert.Equal(t, []string{TagSchedulingIntent, TagVisitCancelled}, lead.Tags)
}

func TestApplySourceIsImmutable(t *testing.T) {
	lead := NewLead("5511987654321", SourceTypebot, time.Now())
	lead.Apply(Update{Name: strPtr("Bruno")}, time.Now())
	assert.Equal(t, SourceTypebot, lead.Source)
}

func TestApplyObservationsAppendDistinct(t *testing.T) {
	lead := NewLead("5511987654321", SourceTypebot, time.Now())
	lead.Apply(Update{Observation: strPtr("Quer 3 quartos")}, time.Now())
	lead.Apply(Update{Observation: strPtr("Quer 3 quartos")}, time.Now())
	lead.Apply(Update{Observation: strPtr("Tem pet")}, time.Now())
	assert.Equal(t, "Quer 3 quartos\nTem pet", *lead.Observations)
}

func TestApplyLastActivityMonotonic(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	lead := NewLead("5511987654321", SourceWhatsApp, t0)
	lead.Apply(Update{ActivityAt: &t1}, t1)
	lead.Apply(Update{ActivityAt: &t0}, t1)
	assert.Equal(t, t1, *lead.LastActivity)
}

func TestTypebotDataHelpers(t *testing.T) {
	var nilData *TypebotData
	assert.True(t, nilData.IsEmpty())
	assert.False(t, nilData.HasBudget())
	assert.True(t, (&TypebotData{BudgetRent: strPtr("3000")}).HasBudget())
	assert.True(t, (&TypebotData{Budget: strPtr(" ")}).IsEmpty())
}
