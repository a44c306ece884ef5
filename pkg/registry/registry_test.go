package registry_test

import (
	"testing"

	"github.com/illmade-knight/go-assetcache/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type imageKey string

const (
	chips imageKey = "chips"
	food  imageKey = "food"
	gear  imageKey = "gear"
)

func imageEntries() []registry.Entry[imageKey] {
	return []registry.Entry[imageKey]{
		{Key: chips, BasePath: "assets/images/", RelativePath: "chips.png"},
		{Key: food, BasePath: "assets/images/", RelativePath: "food.png"},
		{Key: gear, BasePath: "assets/images", RelativePath: "sub/gear.png"},
	}
}

func TestNew(t *testing.T) {
	t.Run("Builds registry preserving order", func(t *testing.T) {
		// Act
		r, err := registry.New(imageEntries()...)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 3, r.Len())
		assert.Equal(t, []imageKey{chips, food, gear}, r.Keys())
		assert.True(t, r.Contains(food))
		assert.False(t, r.Contains(imageKey("missing")))
	})

	t.Run("Duplicate key fails", func(t *testing.T) {
		// Arrange
		entries := append(imageEntries(), registry.Entry[imageKey]{Key: chips, RelativePath: "other.png"})

		// Act
		r, err := registry.New(entries...)

		// Assert
		require.Error(t, err)
		assert.Nil(t, r)
		assert.ErrorIs(t, err, registry.ErrDuplicateKey)
		assert.Contains(t, err.Error(), "chips")
	})

	t.Run("Empty relative path fails", func(t *testing.T) {
		_, err := registry.New(registry.Entry[string]{Key: "blank", BasePath: "assets/", RelativePath: " "})

		require.Error(t, err)
		assert.ErrorIs(t, err, registry.ErrEmptyPath)
	})

	t.Run("Empty registry is valid", func(t *testing.T) {
		r, err := registry.New[string]()

		require.NoError(t, err)
		assert.Equal(t, 0, r.Len())
		assert.Empty(t, r.Keys())
	})
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := registry.New(imageEntries()...)
	require.NoError(t, err)

	t.Run("Joins base and relative path", func(t *testing.T) {
		p, err := r.Resolve(chips)
		require.NoError(t, err)
		assert.Equal(t, "assets/images/chips.png", p)

		p, err = r.Resolve(gear)
		require.NoError(t, err)
		assert.Equal(t, "assets/images/sub/gear.png", p)
	})

	t.Run("Resolution is deterministic", func(t *testing.T) {
		first, err := r.Resolve(food)
		require.NoError(t, err)
		second, err := r.Resolve(food)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Unknown key fails", func(t *testing.T) {
		_, err := r.Resolve(imageKey("nope"))
		require.Error(t, err)
		assert.ErrorIs(t, err, registry.ErrUnknownKey)
	})
}

func TestEntry_Path(t *testing.T) {
	testCases := []struct {
		name  string
		entry registry.Entry[string]
		want  string
	}{
		{name: "no base path", entry: registry.Entry[string]{RelativePath: "go.wav"}, want: "go.wav"},
		{name: "trailing slash base", entry: registry.Entry[string]{BasePath: "assets/audio/", RelativePath: "go.wav"}, want: "assets/audio/go.wav"},
		{name: "backslashes normalised", entry: registry.Entry[string]{BasePath: `assets\audio`, RelativePath: `sfx\away.wav`}, want: "assets/audio/sfx/away.wav"},
		{name: "dot segments cleaned", entry: registry.Entry[string]{BasePath: "./assets", RelativePath: "./away.wav"}, want: "assets/away.wav"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.entry.Path())
		})
	}
}
