package repository

import (
	"context"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
)

// ListParams filters lead listings.
type ListParams struct {
	Quality *domain.Quality
	Limit   int
	Offset  int
}

// LeadsRepository is the durable Lead Store keyed by canonical phone number.
type LeadsRepository interface {
	// Get returns domain.ErrLeadNotFound when no lead exists.
	Get(ctx context.Context, phoneNumber string) (*domain.Lead, error)
	// Save inserts or fully replaces the lead row.
	Save(ctx context.Context, lead *domain.Lead) error
	List(ctx context.Context, params ListParams) ([]domain.Lead, int, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
