// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Events
// =============================================================================

// LeadCaptured is published the first time a phone number becomes a lead.
type LeadCaptured struct {
	BaseEvent
	PhoneNumber string `json:"phoneNumber"`
	Source      string `json:"source"`
	Name        string `json:"name,omitempty"`
}

func (e LeadCaptured) EventName() string { return "leads.lead.captured" }

// LeadQualityChanged is published when a recomputed score moves a lead to another tier.
type LeadQualityChanged struct {
	BaseEvent
	PhoneNumber     string   `json:"phoneNumber"`
	Name            string   `json:"name,omitempty"`
	Score           int      `json:"score"`
	PreviousQuality string   `json:"previousQuality"`
	Quality         string   `json:"quality"`
	Indicators      []string `json:"indicators"`
}

func (e LeadQualityChanged) EventName() string { return "leads.lead.quality_changed" }

// =============================================================================
// Scheduling Events
// =============================================================================

// VisitLinkSent is published after a booking link was created for a customer.
type VisitLinkSent struct {
	BaseEvent
	PhoneNumber   string `json:"phoneNumber"`
	PropertyID    int    `json:"propertyId"`
	PropertyTitle string `json:"propertyTitle"`
	Link          string `json:"link"`
}

func (e VisitLinkSent) EventName() string { return "scheduling.visit.link_sent" }

// VisitBooked is published when the calendar provider confirms a booking.
type VisitBooked struct {
	BaseEvent
	PhoneNumber   string     `json:"phoneNumber"`
	CustomerName  string     `json:"customerName,omitempty"`
	CustomerEmail string     `json:"customerEmail,omitempty"`
	PropertyID    int        `json:"propertyId,omitempty"`
	PropertyTitle string     `json:"propertyTitle,omitempty"`
	StartTime     *time.Time `json:"startTime,omitempty"`
}

func (e VisitBooked) EventName() string { return "scheduling.visit.booked" }

// VisitCancelled is published when the calendar provider reports a cancellation.
type VisitCancelled struct {
	BaseEvent
	PhoneNumber string `json:"phoneNumber"`
	PropertyID  int    `json:"propertyId,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (e VisitCancelled) EventName() string { return "scheduling.visit.cancelled" }
