// Package service resolves property ids against the cached catalog.
package service

import (
	"context"
	"errors"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// maxMediaPerProperty caps how many images are sent for one property.
const maxMediaPerProperty = 5

// Service is the property resolver.
type Service struct {
	cache  *Cache
	source repository.Source
	signer repository.MediaSigner
	log    *logger.Logger
}

// New creates a resolver. A nil signer passes public image URLs through.
func New(cache *Cache, source repository.Source, signer repository.MediaSigner, log *logger.Logger) *Service {
	if signer == nil {
		signer = repository.PassthroughSigner{}
	}
	return &Service{cache: cache, source: source, signer: signer, log: log.WithComponent("catalog")}
}

// Cache exposes the snapshot cache for invalidation.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Snapshot returns the active catalog for generation context.
func (s *Service) Snapshot(ctx context.Context) ([]domain.Property, error) {
	return s.cache.Get(ctx)
}

// GetProperty resolves id, first in the snapshot then at the source so that
// listings added since the last refresh are still found.
func (s *Service) GetProperty(ctx context.Context, id int) (domain.Property, error) {
	if id <= 0 {
		return domain.Property{}, domain.ErrPropertyNotFound
	}
	if _, err := s.cache.Get(ctx); err != nil {
		s.log.CollaboratorFailure("catalog", "snapshot", err)
	}
	if p, ok := s.cache.Lookup(id); ok {
		return p, nil
	}

	p, err := s.source.GetProperty(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPropertyNotFound) {
			return domain.Property{}, domain.ErrPropertyNotFound
		}
		return domain.Property{}, err
	}
	return p, nil
}

// MediaURLs signs up to maxMediaPerProperty images. Images that fail to
// sign are skipped.
func (s *Service) MediaURLs(ctx context.Context, p domain.Property) []string {
	out := make([]string, 0, min(len(p.Images), maxMediaPerProperty))
	for _, ref := range p.Images {
		if len(out) == maxMediaPerProperty {
			break
		}
		u, err := s.signer.SignedURL(ctx, ref)
		if err != nil {
			s.log.Warn("skipping property image", "propertyId", p.ID, "error", err)
			continue
		}
		out = append(out, u)
	}
	return out
}
