package conversation

import (
	"context"
	"errors"
	"time"
)

// Store persists sessions keyed by phone number. Implementations expire a
// session once it has been idle for the configured inactivity window.
type Store interface {
	Get(ctx context.Context, phoneNumber string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, phoneNumber string) error
}

// LoadOrNew returns the live session for phoneNumber or a fresh one.
// created reports whether a new session was started.
func LoadOrNew(ctx context.Context, store Store, phoneNumber string, now time.Time) (s *Session, created bool, err error) {
	s, err = store.Get(ctx, phoneNumber)
	if errors.Is(err, ErrSessionNotFound) {
		return New(phoneNumber, now), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}
