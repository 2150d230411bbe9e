// Package workers runs webhook processing off the request goroutine.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// Dispatcher hands a unit of work to be run after the caller returns.
type Dispatcher interface {
	Go(name string, fn func(ctx context.Context) error)
}

// Pool runs jobs on goroutines bounded by a weighted semaphore. Jobs get a
// fresh context with a deadline; the HTTP request context is never reused.
type Pool struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	wg      sync.WaitGroup
	log     *logger.Logger
}

// NewPool creates a pool allowing at most size concurrent jobs.
func NewPool(size int, timeout time.Duration, log *logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		timeout: timeout,
		log:     log.WithComponent("workers"),
	}
}

// Go schedules fn. It never blocks the caller.
func (p *Pool) Go(name string, fn func(ctx context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			p.log.Error("worker acquire failed", "job", name, "error", err)
			return
		}
		defer p.sem.Release(1)

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := run(ctx, fn); err != nil {
			p.log.Error("background job failed", "job", name, "error", err)
		}
	}()
}

// Shutdown waits for in-flight jobs until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inline runs jobs synchronously on the caller's goroutine.
type Inline struct{}

func (Inline) Go(_ string, fn func(ctx context.Context) error) {
	_ = run(context.Background(), fn)
}

func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
