package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSStorage implements Archive using Google Cloud Storage.
type GCSStorage struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a GCS-backed Archive.
// It uses Application Default Credentials (works with Workload Identity, SA keys, gcloud auth).
func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStorage) put(ctx context.Context, key string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close %s: %w", key, err)
	}
	return nil
}

func (s *GCSStorage) get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("gcs read %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStorage) PutFacts(ctx context.Context, workspace, reportID string, data []byte) error {
	return s.put(ctx, objectKey(s.prefix, workspace, "facts", reportID), data)
}

func (s *GCSStorage) GetFacts(ctx context.Context, workspace, reportID string) ([]byte, error) {
	return s.get(ctx, objectKey(s.prefix, workspace, "facts", reportID))
}

func (s *GCSStorage) PutReport(ctx context.Context, workspace, reportID string, data []byte) error {
	return s.put(ctx, objectKey(s.prefix, workspace, "reports", reportID), data)
}

func (s *GCSStorage) GetReport(ctx context.Context, workspace, reportID string) ([]byte, error) {
	return s.get(ctx, objectKey(s.prefix, workspace, "reports", reportID))
}
