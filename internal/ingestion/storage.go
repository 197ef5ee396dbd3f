// Package ingestion runs the daemon's scoring pipeline: score a facts
// snapshot, archive the facts and the result, and index the report in
// history.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bizhealth/bizhealth/pkg/config"
)

// ErrNotFound is returned by an Archive when the requested blob is missing.
var ErrNotFound = errors.New("archive object not found")

// Archive abstracts blob storage for fact snapshots and scored reports.
// Blobs are keyed by workspace and report ID.
type Archive interface {
	PutFacts(ctx context.Context, workspace, reportID string, data []byte) error
	GetFacts(ctx context.Context, workspace, reportID string) ([]byte, error)
	PutReport(ctx context.Context, workspace, reportID string, data []byte) error
	GetReport(ctx context.Context, workspace, reportID string) ([]byte, error)
}

// objectKey is the layout shared by every backend:
// <workspace-slug>/<kind>/<id>.json.
func objectKey(prefix, workspace, kind, id string) string {
	key := config.Slug(workspace) + "/" + kind + "/" + id + ".json"
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// StorageRef is the archive-relative location of a report, as recorded in
// history.
func StorageRef(workspace, reportID string) string {
	return objectKey("", workspace, "reports", reportID)
}

// LocalStorage implements Archive using the local filesystem.
// Useful for development, tests and the CLI's --save.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(workspace, kind, id string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(objectKey("", workspace, kind, id)))
}

func (s *LocalStorage) put(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *LocalStorage) get(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
	}
	return data, err
}

// PutFacts stores a facts blob.
func (s *LocalStorage) PutFacts(ctx context.Context, workspace, reportID string, data []byte) error {
	return s.put(s.path(workspace, "facts", reportID), data)
}

// GetFacts retrieves a facts blob.
func (s *LocalStorage) GetFacts(ctx context.Context, workspace, reportID string) ([]byte, error) {
	return s.get(s.path(workspace, "facts", reportID))
}

// PutReport stores a scored report blob.
func (s *LocalStorage) PutReport(ctx context.Context, workspace, reportID string, data []byte) error {
	return s.put(s.path(workspace, "reports", reportID), data)
}

// GetReport retrieves a scored report blob.
func (s *LocalStorage) GetReport(ctx context.Context, workspace, reportID string) ([]byte, error) {
	return s.get(s.path(workspace, "reports", reportID))
}

// NewArchive builds the backend selected by cfg.Backend.
func NewArchive(ctx context.Context, cfg config.StorageConfig) (Archive, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.Dir), nil
	case "gcs":
		return NewGCSStorage(ctx, cfg.Bucket, cfg.Prefix)
	case "s3":
		return NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		})
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
