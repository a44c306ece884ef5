package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
)

// FilesystemSource reads assets from a billy filesystem.
type FilesystemSource struct {
	fs     billy.Filesystem
	logger zerolog.Logger
}

// NewFilesystemSource wraps an existing billy filesystem, e.g. memfs in tests.
func NewFilesystemSource(filesystem billy.Filesystem, logger zerolog.Logger) (*FilesystemSource, error) {
	if filesystem == nil {
		return nil, fmt.Errorf("filesystem cannot be nil")
	}
	logger.Info().Str("root", filesystem.Root()).Msg("FilesystemSource initialized.")
	return &FilesystemSource{
		fs:     filesystem,
		logger: logger.With().Str("component", "FilesystemSource").Logger(),
	}, nil
}

// NewLocalSource reads assets from the local disk below root.
func NewLocalSource(root string, logger zerolog.Logger) (*FilesystemSource, error) {
	return NewFilesystemSource(osfs.New(root), logger)
}

// Fetch reads the whole file at path.
func (s *FilesystemSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to open asset file.")
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Close is a no-op; the filesystem has no connection to release.
func (s *FilesystemSource) Close() error {
	return nil
}
