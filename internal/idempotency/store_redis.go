package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "webhook:receipt:"

// RedisStore keeps receipts as expiring keys shared by every API instance.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Record(ctx context.Context, r Receipt) (bool, error) {
	key := receiptKey(r.SourceSystem, r.ExternalEventID)
	ok, err := s.client.SetNX(ctx, key, r.FirstSeenAt.Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record receipt: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, source, externalEventID string) error {
	if err := s.client.Del(ctx, receiptKey(source, externalEventID)).Err(); err != nil {
		return fmt.Errorf("release receipt: %w", err)
	}
	return nil
}

func receiptKey(source, externalEventID string) string {
	return redisKeyPrefix + source + ":" + externalEventID
}
