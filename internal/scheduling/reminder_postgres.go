package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresReminders stores reminders in visit_reminders.
type PostgresReminders struct {
	pool *pgxpool.Pool
}

func NewPostgresReminders(pool *pgxpool.Pool) *PostgresReminders {
	return &PostgresReminders{pool: pool}
}

const reminderColumns = `id, phone_number, customer_name, property_id, property_title, kind,
	visit_at, remind_at, status, last_error, created_at, sent_at`

func (r *PostgresReminders) Create(ctx context.Context, reminders []Reminder) error {
	if len(reminders) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rem := range reminders {
		batch.Queue(`INSERT INTO visit_reminders (`+reminderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			rem.ID, rem.PhoneNumber, nullString(rem.CustomerName), nullInt(rem.PropertyID), nullString(rem.PropertyTitle),
			string(rem.Kind), rem.VisitAt, rem.RemindAt, string(rem.Status), rem.LastError, rem.CreatedAt, rem.SentAt)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("create reminders: %w", err)
	}
	return nil
}

func (r *PostgresReminders) Get(ctx context.Context, id uuid.UUID) (Reminder, error) {
	rem, err := scanReminder(r.pool.QueryRow(ctx, `SELECT `+reminderColumns+` FROM visit_reminders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reminder{}, ErrReminderNotFound
	}
	if err != nil {
		return Reminder{}, fmt.Errorf("get reminder: %w", err)
	}
	return rem, nil
}

func (r *PostgresReminders) CancelPending(ctx context.Context, phoneNumber string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE visit_reminders SET status = 'cancelled'
		WHERE phone_number = $1 AND status IN ('pending', 'enqueued')
	`, phoneNumber)
	if err != nil {
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresReminders) ListPending(ctx context.Context, limit int) ([]Reminder, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderColumns+` FROM visit_reminders
		WHERE status IN ('pending', 'enqueued')
		ORDER BY remind_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *PostgresReminders) ClaimDue(ctx context.Context, horizon time.Time, limit int) ([]Reminder, error) {
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM visit_reminders
		WHERE status = 'pending' AND remind_at <= $1
		ORDER BY remind_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	UPDATE visit_reminders v
	SET status = 'enqueued'
	FROM cte
	WHERE v.id = cte.id
	RETURNING v.id, v.phone_number, v.customer_name, v.property_id, v.property_title, v.kind,
		v.visit_at, v.remind_at, v.status, v.last_error, v.created_at, v.sent_at`, horizon, limit)
	if err != nil {
		return nil, fmt.Errorf("claim reminders: %w", err)
	}
	results, err := collectReminders(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *PostgresReminders) MarkPending(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.pool.Exec(ctx, `UPDATE visit_reminders SET status = 'pending', last_error = $2 WHERE id = $1`, id, lastError)
	return err
}

func (r *PostgresReminders) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE visit_reminders SET status = 'sent', sent_at = $2, last_error = NULL WHERE id = $1`, id, at)
	return err
}

func (r *PostgresReminders) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.pool.Exec(ctx, `UPDATE visit_reminders SET status = 'failed', last_error = $2 WHERE id = $1`, id, lastError)
	return err
}

func collectReminders(rows pgx.Rows) ([]Reminder, error) {
	var out []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func scanReminder(row pgx.Row) (Reminder, error) {
	var rem Reminder
	var name, title *string
	var propertyID *int
	var kind, status string
	err := row.Scan(&rem.ID, &rem.PhoneNumber, &name, &propertyID, &title, &kind,
		&rem.VisitAt, &rem.RemindAt, &status, &rem.LastError, &rem.CreatedAt, &rem.SentAt)
	if err != nil {
		return Reminder{}, err
	}
	if name != nil {
		rem.CustomerName = *name
	}
	if title != nil {
		rem.PropertyTitle = *title
	}
	if propertyID != nil {
		rem.PropertyID = *propertyID
	}
	rem.Kind = ReminderKind(kind)
	rem.Status = ReminderStatus(status)
	return rem, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
