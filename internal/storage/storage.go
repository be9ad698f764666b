// Package storage provides S3-compatible object storage for campaign image
// assets, backed by MinIO.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"metagapura_portal_backend/platform/config"
)

// PresignedURLTTL is the default expiration time for presigned URLs (15 minutes).
const PresignedURLTTL = 15 * time.Minute

// Service stores campaign assets in one bucket and serves presigned GET
// URLs for them. A nil Service is a valid "disabled" instance.
type Service struct {
	client      *minio.Client
	bucket      string
	maxFileSize int64
}

// New creates a MinIO-backed asset store. It returns (nil, nil) when MinIO
// is not configured; callers treat a nil service as disabled.
func New(cfg config.MinIOConfig) (*Service, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Service{
		client:      client,
		bucket:      cfg.GetMinioBucketCampaignAssets(),
		maxFileSize: cfg.GetMinIOMaxFileSize(),
	}, nil
}

// Enabled reports whether a storage backend is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// EnsureBucketExists creates the campaign assets bucket if it doesn't exist.
func (s *Service) EnsureBucketExists(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}

	return nil
}

// Upload stores an object under the given key.
func (s *Service) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if !s.Enabled() {
		return fmt.Errorf("storage is not configured")
	}
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return fmt.Errorf("file exceeds maximum size of %d bytes", s.maxFileSize)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// PresignedURL creates a time-limited download URL for an object.
func (s *Service) PresignedURL(ctx context.Context, key string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("storage is not configured")
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, PresignedURLTTL, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return presigned.String(), nil
}

// Delete removes an object from the bucket.
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return fmt.Errorf("storage is not configured")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
