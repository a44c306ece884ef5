package assetcache_test

import (
	"context"
	"testing"

	"github.com/illmade-knight/go-assetcache/pkg/assetcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_MaxEntries(t *testing.T) {
	ctx := context.Background()

	t.Run("Least recently used entry is evicted", func(t *testing.T) {
		// Arrange
		loader := newCountingLoader(nil)
		c := newCache(t, loader, &assetcache.Config{MaxEntries: 2})

		// Act 1: Fill the cache.
		_, err := c.Get(ctx, chips)
		require.NoError(t, err)
		_, err = c.Get(ctx, food)
		require.NoError(t, err)

		// Assert 1
		assert.Equal(t, int32(2), loader.calls.Load())

		// Act 2: Touch chips so food becomes the least recently used.
		_, err = c.Get(ctx, chips)
		require.NoError(t, err)
		assert.Equal(t, int32(2), loader.calls.Load(), "Loader should NOT be called for a cache hit")

		// Act 3: Loading gear pushes food out.
		_, err = c.Get(ctx, gear)
		require.NoError(t, err)

		// Assert 3
		assert.Equal(t, 2, c.Len())
		assert.True(t, c.Contains(chips))
		assert.False(t, c.Contains(food))
		assert.True(t, c.Contains(gear))

		// Act 4: food must be loaded again.
		_, err = c.Get(ctx, food)
		require.NoError(t, err)
		assert.Equal(t, int32(4), loader.calls.Load())
	})

	t.Run("Explicit eviction keeps the recency list consistent", func(t *testing.T) {
		// Arrange
		loader := newCountingLoader(nil)
		c := newCache(t, loader, &assetcache.Config{MaxEntries: 2})
		_, _ = c.Get(ctx, chips)
		_, _ = c.Get(ctx, food)

		// Act
		c.Evict(chips)
		_, _ = c.Get(ctx, gear)

		// Assert
		assert.Equal(t, 2, c.Len())
		assert.True(t, c.Contains(food))
		assert.True(t, c.Contains(gear))
	})

	t.Run("Zero means unbounded", func(t *testing.T) {
		c := newCache(t, newCountingLoader(nil), &assetcache.Config{})

		for _, k := range []imageKey{chips, food, gear} {
			_, err := c.Get(ctx, k)
			require.NoError(t, err)
		}

		assert.Equal(t, 3, c.Len())
	})
}
