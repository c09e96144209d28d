// Package media stores uploaded files (images, audio, attachments) in
// S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Service uploads media assets to a MinIO/S3 bucket.
type Service struct {
	client *minio.Client
	bucket string
	useSSL bool
}

// Upload describes a stored object.
type Upload struct {
	ObjectKey   string
	URL         string
	Size        int64
	ContentType string
}

// NewService connects to object storage and ensures the bucket exists.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}

	s := &Service{client: client, bucket: cfg.Bucket, useSSL: cfg.UseSSL}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores a file under a generated key and returns its location.
// The key is prefixed with the upload date so buckets stay browsable.
func (s *Service) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (*Upload, error) {
	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("%s/%s%s", time.Now().UTC().Format("2006/01"), uuid.NewString(), ext)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}

	return &Upload{
		ObjectKey:   key,
		URL:         s.PublicURL(key),
		Size:        info.Size,
		ContentType: contentType,
	}, nil
}

// Delete removes an object from the bucket.
func (s *Service) Delete(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", objectKey, err)
	}
	return nil
}

// PresignedURL returns a time-limited download link for a private object.
func (s *Service) PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}

// PublicURL builds the direct URL for an object key.
func (s *Service) PublicURL(objectKey string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, objectKey)
}
