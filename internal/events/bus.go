// Package events re-exports the platform event bus for convenience.
package events

import (
	platformevents "github.com/JuhDomingues/BS-Consultoria-sub001/platform/events"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// InMemoryBus is a type alias to the platform InMemoryBus
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
