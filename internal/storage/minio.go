package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"clipforge/internal/config"
	"clipforge/internal/services"
)

// ArtifactStore persists finished highlights and hands back a public URL.
type ArtifactStore interface {
	Put(ctx context.Context, objectName, filePath, contentType string) (string, error)
}

// MinioStore is the S3-compatible ArtifactStore used in production.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// NewMinio connects to the configured object storage and ensures the artifact
// bucket exists.
func NewMinio(ctx context.Context, cfg config.Storage) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("storage endpoint required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("storage bucket required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	publicBase := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	return &MinioStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: publicBase,
	}, nil
}

// Put uploads a file and returns its public URL.
func (m *MinioStore) Put(ctx context.Context, objectName, filePath, contentType string) (string, error) {
	objectName = strings.TrimLeft(strings.TrimSpace(objectName), "/")
	if objectName == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "put", "object name required", nil)
	}
	_, err := m.client.FPutObject(ctx, m.bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "put",
			fmt.Sprintf("upload %s to bucket %s", objectName, m.bucket), err)
	}
	return m.PublicURL(objectName), nil
}

// PublicURL builds the browse URL for an uploaded object.
func (m *MinioStore) PublicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", m.publicBaseURL, m.bucket, strings.TrimLeft(objectName, "/"))
}
