package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/scheduling"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

type fakeDeliverer struct {
	ids []uuid.UUID
	err error
}

func (d *fakeDeliverer) Deliver(_ context.Context, id uuid.UUID) error {
	d.ids = append(d.ids, id)
	return d.err
}

func newTestWorker(d Deliverer) *Worker {
	return &Worker{deliverer: d, log: logger.Discard()}
}

func TestHandleReminderDueDelivers(t *testing.T) {
	d := &fakeDeliverer{}
	id := uuid.New()
	task, err := NewReminderDueTask(ReminderDuePayload{ReminderID: id.String()})
	require.NoError(t, err)
	assert.Equal(t, TaskReminderDue, task.Type())

	require.NoError(t, newTestWorker(d).HandleReminderDue(context.Background(), task))
	assert.Equal(t, []uuid.UUID{id}, d.ids)
}

func TestHandleReminderDueSkipsRetryOnBadPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"not json", []byte("{")},
		{"bad id", []byte(`{"reminderId":"nope"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDeliverer{}
			err := newTestWorker(d).HandleReminderDue(context.Background(), asynq.NewTask(TaskReminderDue, tt.payload))
			assert.ErrorIs(t, err, asynq.SkipRetry)
			assert.Empty(t, d.ids)
		})
	}
}

func TestHandleReminderDueUnknownReminderIsDropped(t *testing.T) {
	d := &fakeDeliverer{err: scheduling.ErrReminderNotFound}
	task, err := NewReminderDueTask(ReminderDuePayload{ReminderID: uuid.NewString()})
	require.NoError(t, err)

	assert.NoError(t, newTestWorker(d).HandleReminderDue(context.Background(), task))
}

func TestHandleReminderDueSendFailureRetries(t *testing.T) {
	d := &fakeDeliverer{err: errors.New("evolution unavailable")}
	task, err := NewReminderDueTask(ReminderDuePayload{ReminderID: uuid.NewString()})
	require.NoError(t, err)

	err = newTestWorker(d).HandleReminderDue(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("rediss://:pw@cache.internal:6380/2", true)
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)

	plain, err := redisClientOpt("redis://localhost:6379/0", false)
	require.NoError(t, err)
	assert.Nil(t, plain.TLSConfig)
}
