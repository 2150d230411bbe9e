package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps receipts in webhook_receipts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Record(ctx context.Context, r Receipt) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_receipts (source_system, external_event_id, first_seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_system, external_event_id) DO NOTHING
	`, r.SourceSystem, r.ExternalEventID, r.FirstSeenAt)
	if err != nil {
		return false, fmt.Errorf("record receipt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Release(ctx context.Context, source, externalEventID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM webhook_receipts WHERE source_system = $1 AND external_event_id = $2
	`, source, externalEventID)
	if err != nil {
		return fmt.Errorf("release receipt: %w", err)
	}
	return nil
}

// Prune deletes receipts first seen before cutoff and returns how many were removed.
func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM webhook_receipts WHERE first_seen_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune receipts: %w", err)
	}
	return tag.RowsAffected(), nil
}
