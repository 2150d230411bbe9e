package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

type pinged struct {
	BaseEvent
	N int
}

func (pinged) EventName() string { return "test.pinged" }

func TestPublishSyncJoinsErrorsAndRecoversPanics(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var calls atomic.Int32

	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error {
		calls.Add(1)
		return errors.New("boom")
	}))
	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error {
		calls.Add(1)
		panic("kaboom")
	}))
	bus.Subscribe("test.other", HandlerFunc(func(context.Context, Event) error {
		t.Fatal("unrelated handler invoked")
		return nil
	}))

	err := bus.PublishSync(context.Background(), pinged{BaseEvent: NewBaseEvent(), N: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "kaboom")
	assert.EqualValues(t, 2, calls.Load())
}

func TestPublishAsyncSurvivesCancelledContext(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var seen atomic.Int32

	bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, e Event) error {
		if ctx.Err() == nil {
			seen.Add(int32(e.(pinged).N))
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pinged{BaseEvent: NewBaseEvent(), N: 3})
	bus.Wait()

	assert.EqualValues(t, 3, seen.Load())
}

func TestNewBaseEventHasID(t *testing.T) {
	a, b := NewBaseEvent(), NewBaseEvent()
	assert.NotEmpty(t, a.EventID())
	assert.NotEqual(t, a.EventID(), b.EventID())
	assert.False(t, a.OccurredAt().IsZero())
}
