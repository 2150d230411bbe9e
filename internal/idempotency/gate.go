// Package idempotency records webhook deliveries so that provider retries
// are acknowledged without being processed twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// Source systems that deliver webhooks.
const (
	SourceWhatsApp = "whatsapp"
	SourceTypebot  = "typebot"
	SourceCalendly = "calendly"
)

// Decision is the outcome of a gate check.
type Decision int

const (
	Accept Decision = iota
	Duplicate
)

func (d Decision) String() string {
	if d == Duplicate {
		return "duplicate"
	}
	return "accept"
}

// Receipt marks the first delivery of an external event.
type Receipt struct {
	SourceSystem    string    `json:"sourceSystem"`
	ExternalEventID string    `json:"externalEventId"`
	FirstSeenAt     time.Time `json:"firstSeenAt"`
}

// Store persists receipts. Record reports false when the receipt already existed.
// Release forgets a receipt so the next delivery is processed again.
type Store interface {
	Record(ctx context.Context, r Receipt) (bool, error)
	Release(ctx context.Context, source, externalEventID string) error
}

// Gate checks and records receipts before any downstream work starts.
type Gate struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

func NewGate(store Store, log *logger.Logger) *Gate {
	return &Gate{store: store, log: log.WithComponent("idempotency"), now: time.Now}
}

// WithClock overrides the time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Check records (source, key) and reports whether it was seen before.
// An empty key cannot be deduplicated and is accepted. When the store is
// unreachable the event is accepted and the error returned.
func (g *Gate) Check(ctx context.Context, source, key string) (Decision, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Accept, nil
	}
	inserted, err := g.store.Record(ctx, Receipt{
		SourceSystem:    source,
		ExternalEventID: key,
		FirstSeenAt:     g.now().UTC(),
	})
	if err != nil {
		g.log.CollaboratorFailure("receipts", "record", err)
		return Accept, err
	}
	if !inserted {
		g.log.WebhookDuplicate(source, key)
		return Duplicate, nil
	}
	return Accept, nil
}

// Release drops the receipt for (source, key) after processing failed, so a
// provider retry is accepted instead of acknowledged as a duplicate.
func (g *Gate) Release(ctx context.Context, source, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := g.store.Release(ctx, source, key); err != nil {
		g.log.CollaboratorFailure("receipts", "release", err)
		return err
	}
	return nil
}

// ContentHash derives a stable key for payloads that carry no event id.
func ContentHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
