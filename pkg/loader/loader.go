// Package loader builds assetcache loaders out of a byte source and a decoder.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned by sources when no asset exists at the requested path.
var ErrNotFound = errors.New("asset not found")

// Source fetches the raw bytes stored at a resolved asset path.
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	io.Closer
}

// Decoder turns the raw bytes of an asset into its typed value.
type Decoder[V any] func(path string, data []byte) (V, error)

// Raw returns the bytes unchanged.
func Raw(_ string, data []byte) ([]byte, error) {
	return data, nil
}

// JSON decodes the bytes as a JSON document of type V.
func JSON[V any](path string, data []byte) (V, error) {
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		var zero V
		return zero, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return value, nil
}

// SourceLoader implements assetcache.Loader by fetching from a Source and
// decoding the result.
type SourceLoader[V any] struct {
	source Source
	decode Decoder[V]
	logger zerolog.Logger
}

// New creates a loader that reads from source and decodes with decode.
func New[V any](source Source, decode Decoder[V], logger zerolog.Logger) (*SourceLoader[V], error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if decode == nil {
		return nil, fmt.Errorf("decoder cannot be nil")
	}
	return &SourceLoader[V]{
		source: source,
		decode: decode,
		logger: logger.With().Str("component", "SourceLoader").Logger(),
	}, nil
}

// Load fetches and decodes the asset at path.
func (l *SourceLoader[V]) Load(ctx context.Context, path string) (V, error) {
	var zero V
	data, err := l.source.Fetch(ctx, path)
	if err != nil {
		return zero, fmt.Errorf("fetch %s: %w", path, err)
	}
	value, err := l.decode(path, data)
	if err != nil {
		return zero, fmt.Errorf("decode %s: %w", path, err)
	}
	l.logger.Debug().Str("path", path).Str("size", humanize.Bytes(uint64(len(data)))).Msg("Asset fetched and decoded.")
	return value, nil
}

// Close closes the underlying source.
func (l *SourceLoader[V]) Close() error {
	return l.source.Close()
}
