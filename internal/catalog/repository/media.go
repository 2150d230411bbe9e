package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
)

// MinIOSigner presigns property image object keys. Absolute URLs pass through.
type MinIOSigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewMinIOSigner creates a presigner for the property images bucket.
func NewMinIOSigner(cfg config.MinIOConfig) (*MinIOSigner, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ttl := cfg.GetPresignedURLTTL()
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MinIOSigner{client: client, bucket: cfg.GetMinioBucketPropertyImages(), ttl: ttl}, nil
}

// Ping checks that the images bucket exists.
func (s *MinIOSigner) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func (s *MinIOSigner) SignedURL(ctx context.Context, ref string) (string, error) {
	if isAbsoluteURL(ref) {
		return ref, nil
	}
	key := strings.TrimPrefix(ref, "/")
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return u.String(), nil
}

// PassthroughSigner serves references that are already public URLs and
// drops everything else.
type PassthroughSigner struct{}

func (PassthroughSigner) SignedURL(_ context.Context, ref string) (string, error) {
	if !isAbsoluteURL(ref) {
		return "", fmt.Errorf("image %q is not a public url and no object storage is configured", ref)
	}
	return ref, nil
}

func isAbsoluteURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
