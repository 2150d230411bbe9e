package transport

import (
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
)

// PropertyListResponse is the body of GET /admin/catalog/properties.
type PropertyListResponse struct {
	Items     []domain.Property `json:"items"`
	Total     int               `json:"total"`
	FetchedAt *time.Time        `json:"fetchedAt,omitempty"`
}

// InvalidateResponse is the body of POST /admin/catalog/invalidate.
type InvalidateResponse struct {
	Success    bool       `json:"success"`
	PreviousAt  *time.Time `json:"previousFetchedAt,omitempty"`
}
