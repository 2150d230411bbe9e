// Package dialogue coordinates one inbound customer message: history,
// reply generation, sanitizing, scheduling and the outbound send.
package dialogue

import (
	"context"

	catalogdomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
)

// GenerationContext is everything the reply generator sees.
type GenerationContext struct {
	PhoneNumber     string
	History         []conversation.Turn
	Customer        conversation.CustomerInfo
	ActiveProperty  *catalogdomain.Property
	Catalog         []catalogdomain.Property
	SchedulingState conversation.SchedulingState
}

// SchedulingSignal is the generator's read of visit intent.
type SchedulingSignal struct {
	WantsToSchedule bool
	PropertyID      int
}

// Generation is a candidate reply plus the structured signals that drive
// the orchestrator's branches.
type Generation struct {
	Reply                     string
	ShouldSendPropertyDetails bool
	PropertyToSend            int
	Scheduling                SchedulingSignal
	CustomerInfo              conversation.CustomerInfo
}

// Generator produces the next agent reply.
type Generator interface {
	Generate(ctx context.Context, in GenerationContext) (Generation, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, in GenerationContext) (Generation, error)

func (f GeneratorFunc) Generate(ctx context.Context, in GenerationContext) (Generation, error) {
	return f(ctx, in)
}
