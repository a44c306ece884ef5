package assetcache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds the tunables of a Cache. A nil Config uses the defaults.
type Config struct {
	// MaxEntries bounds the number of loaded entries. Once exceeded, the least
	// recently used loaded entry is evicted. Zero means unbounded.
	MaxEntries int
	// PreloadConcurrency bounds the number of loads Preload runs at once.
	PreloadConcurrency int
}

// DefaultConfig returns the configuration used when New is given nil.
func DefaultConfig() *Config {
	return &Config{
		MaxEntries:         0,
		PreloadConcurrency: 4,
	}
}

// entry is the per-key slot. While done is open the entry is loading; once it
// is closed value and err hold the terminal result and are never written again.
type entry[V any] struct {
	done   chan struct{}
	value  V
	err    error
	loaded bool
	// elem is the entry's position in the recency list, set only when
	// MaxEntries is in effect and the entry is loaded.
	elem *list.Element
}

// Cache stores the loaded assets of one collection.
// Concurrent Gets for the same key share a single loader invocation; Gets for
// different keys never wait on each other.
type Cache[K comparable, V any] struct {
	resolver           Resolver[K]
	loader             Loader[V]
	logger             zerolog.Logger
	maxEntries         int
	preloadConcurrency int

	// mu guards entries and recency. It is never held while a loader runs.
	mu      sync.Mutex
	entries map[K]*entry[V]
	recency *list.List

	hits         atomic.Uint64
	joins        atomic.Uint64
	misses       atomic.Uint64
	loads        atomic.Uint64
	loadFailures atomic.Uint64
	evictions    atomic.Uint64
}

// New creates an empty cache that resolves keys with resolver and loads them with loader.
func New[K comparable, V any](
	cfg *Config,
	resolver Resolver[K],
	loader Loader[V],
	logger zerolog.Logger,
) (*Cache[K, V], error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if loader == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxEntries < 0 {
		return nil, fmt.Errorf("maxEntries must not be negative")
	}
	concurrency := cfg.PreloadConcurrency
	if concurrency <= 0 {
		concurrency = DefaultConfig().PreloadConcurrency
	}

	return &Cache[K, V]{
		resolver:           resolver,
		loader:             loader,
		logger:             logger.With().Str("component", "AssetCache").Logger(),
		maxEntries:         cfg.MaxEntries,
		preloadConcurrency: concurrency,
		entries:            make(map[K]*entry[V]),
		recency:            list.New(),
	}, nil
}

// Get returns the asset for key, loading it if needed.
//
// A loaded asset is returned without calling the loader. If another caller is
// already loading the key, Get waits for that load and returns its result. If
// ctx is done first, Get returns ctx.Err() but the load keeps running and its
// result is still cached for later callers.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.loaded {
			c.touch(e)
			c.mu.Unlock()
			c.hits.Add(1)
			c.logger.Debug().Str("key", fmt.Sprintf("%v", key)).Msg("Cache hit.")
			return e.value, nil
		}
		c.mu.Unlock()
		c.joins.Add(1)
		c.logger.Debug().Str("key", fmt.Sprintf("%v", key)).Msg("Joining in-flight load.")
		return c.wait(ctx, e)
	}

	path, err := c.resolver.Resolve(key)
	if err != nil {
		c.mu.Unlock()
		return zero, err
	}
	e := &entry[V]{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	c.misses.Add(1)
	go c.load(context.WithoutCancel(ctx), key, path, e)
	return c.wait(ctx, e)
}

// Preload loads every key and returns one error per key, in input order.
// A nil error means the key is now cached. Keys are attempted independently,
// so one failure does not stop the others.
func (c *Cache[K, V]) Preload(ctx context.Context, keys ...K) []error {
	results := make([]error, len(keys))
	sem := make(chan struct{}, c.preloadConcurrency)
	var wg sync.WaitGroup

	for i, key := range keys {
		wg.Add(1)
		go func(i int, key K) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			_, results[i] = c.Get(ctx, key)
		}(i, key)
	}
	wg.Wait()

	failed := 0
	for _, err := range results {
		if err != nil {
			failed++
		}
	}
	c.logger.Info().Int("requested", len(keys)).Int("failed", failed).Msg("Preload finished.")
	return results
}

// Evict removes key from the cache whatever its state. Callers already waiting
// on an in-flight load still get its result, but the result is not stored, so
// the next Get loads again. Evicting an absent key is a no-op.
func (c *Cache[K, V]) Evict(key K) {
	c.mu.Lock()
	removed := c.removeLocked(key)
	c.mu.Unlock()
	if removed {
		c.logger.Debug().Str("key", fmt.Sprintf("%v", key)).Msg("Evicted asset.")
	}
}

// Clear evicts every entry. In-flight loads are not cancelled.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	n := 0
	for key := range c.entries {
		if c.removeLocked(key) {
			n++
		}
	}
	c.mu.Unlock()
	c.logger.Info().Int("evicted", n).Msg("Cleared asset cache.")
}

// Contains reports whether key is loaded. In-flight loads do not count.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.loaded
}

// Len returns the number of loaded entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.loaded {
			n++
		}
	}
	return n
}

func (c *Cache[K, V]) wait(ctx context.Context, e *entry[V]) (V, error) {
	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// load performs the single physical load for e and publishes its result.
func (c *Cache[K, V]) load(ctx context.Context, key K, path string, e *entry[V]) {
	stringKey := fmt.Sprintf("%v", key)
	logger := c.logger.With().
		Str("key", stringKey).
		Str("path", path).
		Str("load_id", uuid.NewString()).
		Logger()
	logger.Debug().Msg("Loading asset.")
	start := time.Now()

	value, err := c.invoke(ctx, path)

	c.mu.Lock()
	current, ok := c.entries[key]
	tracked := ok && current == e
	if err != nil {
		e.err = &LoadError{Key: stringKey, Path: path, Cause: err}
		c.loadFailures.Add(1)
		if tracked {
			delete(c.entries, key)
		}
	} else {
		e.value = value
		c.loads.Add(1)
		if tracked {
			e.loaded = true
			c.track(key, e)
		}
	}
	c.mu.Unlock()
	// Counters are published before waiters are released.
	close(e.done)

	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Failed to load asset.")
		return
	}
	if !tracked {
		logger.Debug().Msg("Asset was evicted while loading, result not cached.")
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("Asset loaded.")
}

// invoke calls the loader, turning a panic into an error so that waiters are
// always released.
func (c *Cache[K, V]) invoke(ctx context.Context, path string) (value V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panicked: %v", r)
		}
	}()
	return c.loader.Load(ctx, path)
}

// removeLocked deletes key from the table. It must be called with mu held.
func (c *Cache[K, V]) removeLocked(key K) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.untrack(e)
	delete(c.entries, key)
	c.evictions.Add(1)
	return true
}
