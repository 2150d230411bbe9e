package scheduler

import (
	"context"
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

const defaultReceiptCleanupInterval = time.Hour

// ReceiptPruner deletes webhook receipts first seen before cutoff.
type ReceiptPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReceiptCleanup periodically drops idempotency receipts past their retention.
type ReceiptCleanup struct {
	store     ReceiptPruner
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewReceiptCleanup(store ReceiptPruner, log *logger.Logger, interval, retention time.Duration) *ReceiptCleanup {
	if interval <= 0 {
		interval = defaultReceiptCleanupInterval
	}
	return &ReceiptCleanup{
		store:     store,
		log:       log.WithComponent("scheduler.receipts"),
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *ReceiptCleanup) Run(ctx context.Context) {
	if c == nil || c.store == nil || c.retention <= 0 {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *ReceiptCleanup) cleanup(ctx context.Context) int64 {
	deleted, err := c.store.Prune(ctx, c.now().Add(-c.retention))
	if err != nil {
		c.log.Warn("receipt cleanup failed", "error", err)
		return 0
	}
	if deleted > 0 {
		c.log.Info("receipt cleanup deleted expired receipts", "deleted", deleted)
	}
	return deleted
}
