package loader

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for FirestoreSource.
type FirestoreConfig struct {
	ProjectID      string `yaml:"-"`
	CollectionName string `yaml:"collection"`
	// Field is the document field holding the asset bytes. Defaults to "data".
	Field string `yaml:"field"`
}

// FirestoreSource reads assets stored as one document per asset path.
// Document IDs are the path-escaped asset path, since Firestore IDs cannot
// contain '/'.
type FirestoreSource struct {
	client         *firestore.Client
	collectionName string
	field          string
	logger         zerolog.Logger
}

// NewFirestoreSource creates a new FirestoreSource.
func NewFirestoreSource(
	cfg *FirestoreConfig,
	client *firestore.Client,
	logger zerolog.Logger,
) (*FirestoreSource, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("firestore collection name is required")
	}
	field := cfg.Field
	if field == "" {
		field = "data"
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", cfg.CollectionName).Msg("FirestoreSource initialized.")

	return &FirestoreSource{
		client:         client,
		collectionName: cfg.CollectionName,
		field:          field,
		logger:         logger.With().Str("component", "FirestoreSource").Logger(),
	}, nil
}

// DocumentID returns the document ID used for an asset path.
func DocumentID(path string) string {
	return url.PathEscape(path)
}

// Fetch reads the asset bytes from the document for path.
func (s *FirestoreSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	docID := DocumentID(path)
	docSnap, err := s.client.Collection(s.collectionName).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			s.logger.Warn().Str("path", path).Msg("Document not found in Firestore.")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to get document from Firestore.")
		return nil, fmt.Errorf("firestore get for %s: %w", path, err)
	}

	raw, err := docSnap.DataAt(s.field)
	if err != nil {
		return nil, fmt.Errorf("firestore field %q for %s: %w", s.field, path, err)
	}
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("firestore field %q for %s has unsupported type %T", s.field, path, raw)
	}
}

// Put stores data as the asset for path. It is used to seed a collection.
func (s *FirestoreSource) Put(ctx context.Context, path string, data []byte) error {
	_, err := s.client.Collection(s.collectionName).Doc(DocumentID(path)).Set(ctx, map[string]interface{}{
		s.field: data,
		"path":  path,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to write document to Firestore.")
		return fmt.Errorf("firestore set for %s: %w", path, err)
	}
	return nil
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (s *FirestoreSource) Close() error {
	return nil
}
