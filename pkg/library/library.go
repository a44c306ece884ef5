// Package library groups one asset cache per configured collection.
package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-assetcache/pkg/assetcache"
	"github.com/illmade-knight/go-assetcache/pkg/config"
	"github.com/illmade-knight/go-assetcache/pkg/registry"
	"github.com/rs/zerolog"
)

// ErrUnknownCollection is returned for a collection name that was not configured.
var ErrUnknownCollection = errors.New("unknown collection")

type collection struct {
	registry *registry.Registry[string]
	cache    *assetcache.Cache[string, []byte]
}

// Library holds the raw-byte caches of every configured collection.
type Library struct {
	collections map[string]*collection
	names       []string
	logger      zerolog.Logger
}

// New builds a registry and cache for each collection. All collections share
// the same loader.
func New(
	collections []config.Collection,
	cacheCfg *assetcache.Config,
	loader assetcache.Loader[[]byte],
	logger zerolog.Logger,
) (*Library, error) {
	lib := &Library{
		collections: make(map[string]*collection, len(collections)),
		logger:      logger.With().Str("component", "Library").Logger(),
	}
	for _, col := range collections {
		if _, exists := lib.collections[col.Name]; exists {
			return nil, fmt.Errorf("duplicate collection %q", col.Name)
		}
		reg, err := col.Registry()
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", col.Name, err)
		}
		c, err := assetcache.New[string, []byte](cacheCfg, reg, loader, logger.With().Str("collection", col.Name).Logger())
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", col.Name, err)
		}
		lib.collections[col.Name] = &collection{registry: reg, cache: c}
		lib.names = append(lib.names, col.Name)
		lib.logger.Info().Str("collection", col.Name).Int("assets", reg.Len()).Msg("Registered asset collection.")
	}
	return lib, nil
}

func (l *Library) lookup(name string) (*collection, error) {
	col, ok := l.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return col, nil
}

// Get returns the asset bytes for key in the named collection.
func (l *Library) Get(ctx context.Context, name, key string) ([]byte, error) {
	col, err := l.lookup(name)
	if err != nil {
		return nil, err
	}
	return col.cache.Get(ctx, key)
}

// Preload loads every registered asset of every collection. Failures do not
// stop other keys; they are logged and returned joined.
func (l *Library) Preload(ctx context.Context) error {
	var errs []error
	for _, name := range l.names {
		col := l.collections[name]
		keys := col.registry.Keys()
		for i, err := range col.cache.Preload(ctx, keys...) {
			if err != nil {
				l.logger.Error().Err(err).Str("collection", name).Str("key", keys[i]).Msg("Failed to preload asset.")
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Evict drops one cached asset.
func (l *Library) Evict(name, key string) error {
	col, err := l.lookup(name)
	if err != nil {
		return err
	}
	if !col.registry.Contains(key) {
		return fmt.Errorf("%w: %s", registry.ErrUnknownKey, key)
	}
	col.cache.Evict(key)
	return nil
}

// Clear drops every cached asset of one collection.
func (l *Library) Clear(name string) error {
	col, err := l.lookup(name)
	if err != nil {
		return err
	}
	col.cache.Clear()
	return nil
}

// ClearAll drops every cached asset of every collection.
func (l *Library) ClearAll() {
	for _, name := range l.names {
		l.collections[name].cache.Clear()
	}
}

// Collections returns the collection names in configuration order.
func (l *Library) Collections() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Keys returns the registered keys of a collection.
func (l *Library) Keys(name string) ([]string, error) {
	col, err := l.lookup(name)
	if err != nil {
		return nil, err
	}
	return col.registry.Keys(), nil
}

// Stats returns cache counters keyed by collection name.
func (l *Library) Stats() map[string]assetcache.Stats {
	out := make(map[string]assetcache.Stats, len(l.collections))
	for name, col := range l.collections {
		out[name] = col.cache.Stats()
	}
	return out
}
