package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
)

// Repository is the Postgres-backed Lead Store.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `phone_number, name, email, score, quality, indicators, source, typebot_data,
	property_id, total_messages, tags, observations, last_activity, last_evaluated, created_at, updated_at`

func (r *Repository) Get(ctx context.Context, phoneNumber string) (*domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE phone_number = $1`, phoneNumber)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// Save upserts the whole row. Source and created_at are kept from the first insert.
func (r *Repository) Save(ctx context.Context, lead *domain.Lead) error {
	var typebot []byte
	if lead.TypebotData != nil {
		raw, err := json.Marshal(lead.TypebotData)
		if err != nil {
			return fmt.Errorf("encode typebot data: %w", err)
		}
		typebot = raw
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (phone_number) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			score = EXCLUDED.score,
			quality = EXCLUDED.quality,
			indicators = EXCLUDED.indicators,
			typebot_data = EXCLUDED.typebot_data,
			property_id = EXCLUDED.property_id,
			total_messages = EXCLUDED.total_messages,
			tags = EXCLUDED.tags,
			observations = EXCLUDED.observations,
			last_activity = EXCLUDED.last_activity,
			last_evaluated = EXCLUDED.last_evaluated,
			updated_at = EXCLUDED.updated_at
	`,
		lead.PhoneNumber, lead.Name, lead.Email, lead.Score, string(lead.Quality), nonNil(lead.Indicators),
		string(lead.Source), typebot, lead.PropertyID, lead.TotalMessages, nonNil(lead.Tags),
		lead.Observations, lead.LastActivity, lead.LastEvaluated, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save lead: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	var quality *string
	if params.Quality != nil {
		q := string(*params.Quality)
		quality = &q
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads WHERE ($1::text IS NULL OR quality = $1)`, quality,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE ($1::text IS NULL OR quality = $1)
		ORDER BY score DESC, updated_at DESC
		LIMIT $2 OFFSET $3
	`, quality, normalizeLimit(params.Limit), max(params.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return items, total, nil
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var (
		lead         domain.Lead
		quality      string
		source       string
		typebot      []byte
		lastActivity *time.Time
	)
	if err := row.Scan(
		&lead.PhoneNumber, &lead.Name, &lead.Email, &lead.Score, &quality, &lead.Indicators, &source, &typebot,
		&lead.PropertyID, &lead.TotalMessages, &lead.Tags, &lead.Observations, &lastActivity,
		&lead.LastEvaluated, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.Quality = domain.Quality(quality)
	lead.Source = domain.Source(source)
	lead.LastActivity = lastActivity
	if len(typebot) > 0 {
		var data domain.TypebotData
		if err := json.Unmarshal(typebot, &data); err != nil {
			return nil, fmt.Errorf("decode typebot data: %w", err)
		}
		lead.TypebotData = &data
	}
	return &lead, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
