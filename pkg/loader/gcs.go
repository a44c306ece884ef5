package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// ====================================================================================
// The GCS client is hidden behind small interfaces so that GCSSource can be
// tested without a real bucket.
// ====================================================================================

// GCSClient abstracts the top-level *storage.Client.
type GCSClient interface {
	Bucket(name string) GCSBucketHandle
}

// GCSBucketHandle abstracts a *storage.BucketHandle.
type GCSBucketHandle interface {
	Object(name string) GCSObjectHandle
}

// GCSObjectHandle abstracts a *storage.ObjectHandle.
type GCSObjectHandle interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
}

// --- Adapters to wrap the concrete Google Cloud Storage client ---

type gcsClientAdapter struct {
	client *storage.Client
}

// NewGCSClientAdapter makes a *storage.Client conform to GCSClient.
func NewGCSClientAdapter(client *storage.Client) GCSClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

func (a *gcsClientAdapter) Bucket(name string) GCSBucketHandle {
	return &gcsBucketHandleAdapter{handle: a.client.Bucket(name)}
}

type gcsBucketHandleAdapter struct {
	handle *storage.BucketHandle
}

func (a *gcsBucketHandleAdapter) Object(name string) GCSObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.Object(name)}
}

type gcsObjectHandleAdapter struct {
	handle *storage.ObjectHandle
}

// NewReader returns the object reader, mapping a missing object to ErrNotFound.
func (a *gcsObjectHandleAdapter) NewReader(ctx context.Context) (io.ReadCloser, error) {
	r, err := a.handle.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// GCSConfig holds configuration for GCSSource.
type GCSConfig struct {
	BucketName   string
	ObjectPrefix string
}

// GCSSource reads assets from objects in a Google Cloud Storage bucket.
// The object name is ObjectPrefix joined with the asset path.
type GCSSource struct {
	bucket GCSBucketHandle
	prefix string
	logger zerolog.Logger
}

// NewGCSSource creates a source reading from cfg.BucketName.
// The client's lifecycle is managed by the caller.
func NewGCSSource(cfg *GCSConfig, client GCSClient, logger zerolog.Logger) (*GCSSource, error) {
	if client == nil {
		return nil, fmt.Errorf("GCS client cannot be nil")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	logger.Info().Str("bucket", cfg.BucketName).Str("prefix", cfg.ObjectPrefix).Msg("GCSSource initialized.")
	return &GCSSource{
		bucket: client.Bucket(cfg.BucketName),
		prefix: cfg.ObjectPrefix,
		logger: logger.With().Str("component", "GCSSource").Str("bucket", cfg.BucketName).Logger(),
	}, nil
}

// Fetch downloads the object for assetPath.
func (s *GCSSource) Fetch(ctx context.Context, assetPath string) ([]byte, error) {
	objectName := assetPath
	if s.prefix != "" {
		objectName = path.Join(s.prefix, assetPath)
	}

	r, err := s.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn().Str("object", objectName).Msg("Object not found in bucket.")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectName)
		}
		s.logger.Error().Err(err).Str("object", objectName).Msg("Failed to open object reader.")
		return nil, fmt.Errorf("gcs reader for %s: %w", objectName, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read for %s: %w", objectName, err)
	}
	return data, nil
}

// Close is a no-op as the storage client's lifecycle is managed externally.
func (s *GCSSource) Close() error {
	return nil
}
