package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/events"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/broker"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

const envelopeSource = "sales-orchestrator"

type identified interface {
	EventID() string
}

// Forwarder republishes domain events on the message broker, routed by event name.
type Forwarder struct {
	publisher broker.Publisher
	log       *logger.Logger
}

func NewForwarder(publisher broker.Publisher, log *logger.Logger) *Forwarder {
	return &Forwarder{publisher: publisher, log: log.WithComponent("event_forwarder")}
}

// ForwardedEvents lists every event name the forwarder subscribes to.
func ForwardedEvents() []string {
	return []string{
		events.LeadCaptured{}.EventName(),
		events.LeadQualityChanged{}.EventName(),
		events.VisitLinkSent{}.EventName(),
		events.VisitBooked{}.EventName(),
		events.VisitCancelled{}.EventName(),
	}
}

func (f *Forwarder) RegisterHandlers(bus events.Bus) {
	for _, name := range ForwardedEvents() {
		bus.Subscribe(name, f)
	}
}

func (f *Forwarder) Handle(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventName(), err)
	}

	meta := broker.Meta{
		Type:       event.EventName(),
		Source:     envelopeSource,
		OccurredAt: event.OccurredAt(),
	}
	if id, ok := event.(identified); ok {
		meta.ID = id.EventID()
	}

	if err := f.publisher.Publish(ctx, event.EventName(), broker.Envelope{Meta: meta, Data: data}); err != nil {
		f.log.CollaboratorFailure("amqp", "publish "+event.EventName(), err)
		return err
	}
	return nil
}
