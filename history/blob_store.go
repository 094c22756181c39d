package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobConfig holds the connection settings for an S3-compatible object
// store used as the history backend.
type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Validate checks the blob store configuration.
func (c BlobConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("blob store endpoint is required")
	}
	if c.Bucket == "" {
		return errors.New("blob store bucket is required")
	}
	return nil
}

// BlobStore persists snapshots as named objects in an S3-compatible
// bucket.
type BlobStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewBlobStore creates a blob-backed store from the given configuration.
func NewBlobStore(cfg BlobConfig, logger *slog.Logger) (*BlobStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blob store config: %w", err)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &BlobStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Fetch returns the snapshot stored under name, or ErrNotFound.
func (s *BlobStore) Fetch(ctx context.Context, name string) (*Snapshot, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot %q: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot %q: %w", name, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %q: %w", name, err)
	}
	return &snap, nil
}

// Publish replaces the snapshot stored under name. Object stores give
// us whole-object replacement, so readers see either the old or the
// new snapshot, never a partial one.
func (s *BlobStore) Publish(ctx context.Context, name string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.client.PutObject(
		ctx, s.bucket, objectKey(name),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("failed to publish snapshot %q: %w", name, err)
	}

	s.logger.Debug("published snapshot", "name", name, "bucket", s.bucket, "size", len(data))
	return nil
}

func objectKey(name string) string {
	return name + ".json"
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}
