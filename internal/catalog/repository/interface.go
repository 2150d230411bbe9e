// Package repository reads the property catalog from its backing store.
package repository

import (
	"context"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
)

// Source is a read-only property catalog.
type Source interface {
	// ListProperties returns every active property.
	ListProperties(ctx context.Context) ([]domain.Property, error)
	// GetProperty returns domain.ErrPropertyNotFound when id is unknown.
	GetProperty(ctx context.Context, id int) (domain.Property, error)
}

// MediaSigner turns a stored image reference into a URL a customer can open.
type MediaSigner interface {
	SignedURL(ctx context.Context, ref string) (string, error)
}
