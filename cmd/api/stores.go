package main

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	catalogrepo "github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	apphttp "github.com/JuhDomingues/BS-Consultoria-sub001/internal/http"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/idempotency"
	leadrepo "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/scheduling"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/cache"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/db"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/keylock"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

const phoneLockLease = 30 * time.Second

// stores holds the persistence backends. Each falls back to an in-memory
// implementation when its server is not configured.
type stores struct {
	pool      *pgxpool.Pool
	redis     *redis.Client
	leads     leadrepo.LeadsRepository
	sessions  conversation.Store
	receipts  idempotency.Store
	reminders scheduling.ReminderStore
	locker    keylock.Locker
	signer    catalogrepo.MediaSigner
	health    map[string]apphttp.HealthChecker
}

type storeConfig interface {
	config.DatabaseConfig
	config.RedisConfig
	config.ConversationConfig
	config.MinIOConfig
}

func openStores(ctx context.Context, cfg storeConfig, log *logger.Logger) (*stores, error) {
	st := &stores{health: map[string]apphttp.HealthChecker{}}

	if cfg.GetDatabaseURL() != "" {
		if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
			p, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			st.pool = p
			return nil
		}); err != nil {
			return nil, err
		}
		log.Info("database connection established")

		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, st.pool)
		}); err != nil {
			st.Close()
			return nil, err
		}
		log.Info("database migrations complete")
		st.health["postgres"] = st.pool
	} else {
		log.Warn("DATABASE_URL not configured; leads, receipts and reminders are kept in memory")
	}

	if cfg.GetRedisURL() != "" {
		if err := withRetry(ctx, log, "redis connection", 5, time.Second, func() error {
			c, err := cache.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			st.redis = c
			return nil
		}); err != nil {
			st.Close()
			return nil, err
		}
		log.Info("redis connection established")
		st.health["redis"] = redisHealth{st.redis}
	} else {
		log.Warn("REDIS_URL not configured; sessions and locks are process-local")
	}

	switch {
	case st.pool != nil:
		st.leads = leadrepo.New(st.pool)
		st.reminders = scheduling.NewPostgresReminders(st.pool)
	default:
		st.leads = leadrepo.NewMemory()
		st.reminders = scheduling.NewMemoryReminders()
	}

	switch {
	case st.pool != nil:
		st.receipts = idempotency.NewPostgresStore(st.pool)
	case st.redis != nil:
		st.receipts = idempotency.NewRedisStore(st.redis, cfg.GetIdempotencyTTL())
	default:
		st.receipts = idempotency.NewMemoryStore(cfg.GetIdempotencyTTL(), 0)
	}

	if st.redis != nil {
		st.sessions = conversation.NewRedisStore(st.redis, cfg.GetSessionInactivityTimeout())
		st.locker = keylock.NewRedis(st.redis, phoneLockLease)
	} else {
		st.sessions = conversation.NewMemoryStore(cfg.GetSessionInactivityTimeout())
		st.locker = keylock.NewLocal()
	}

	if cfg.IsMinIOEnabled() {
		signer, err := catalogrepo.NewMinIOSigner(cfg)
		if err != nil {
			log.Error("failed to initialize MinIO; property images use source URLs", "error", err)
		} else {
			st.signer = signer
			st.health["minio"] = signer
		}
	}

	return st, nil
}

func (s *stores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

type redisHealth struct {
	client *redis.Client
}

func (r redisHealth) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
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
