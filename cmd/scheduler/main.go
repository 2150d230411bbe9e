package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/idempotency"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/scheduler"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/scheduling"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/whatsapp"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/db"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// Reminders are handed to asynq this far ahead of their send time.
const reminderLookahead = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if cfg.GetDatabaseURL() == "" || cfg.GetRedisURL() == "" {
		log.Error("scheduler requires DATABASE_URL and REDIS_URL")
		os.Exit(1)
	}

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		log.Error("failed to load tuning", "error", err, "path", cfg.TuningFile)
		panic("failed to load tuning: " + err.Error())
	}

	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		panic("failed to load timezone: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	reminders := scheduling.NewPostgresReminders(pool)
	sender := scheduling.NewReminderSender(reminders, whatsapp.NewClient(cfg, log), tuning.Replies, loc, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder queue client", "error", err)
		panic("failed to initialize reminder queue client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, sender, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	poller := scheduling.NewPoller(reminders, client, cfg.GetReminderPollInterval(), reminderLookahead, log)
	cleanup := scheduler.NewReceiptCleanup(idempotency.NewPostgresStore(pool), log, 0, cfg.GetIdempotencyTTL())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cleanup.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	_ = g.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
