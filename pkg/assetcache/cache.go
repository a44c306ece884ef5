// Package assetcache provides a typed asset cache that loads each registered
// asset at most once, no matter how many goroutines ask for it concurrently.
package assetcache

import "context"

// Loader turns a resolved asset path into a typed value.
// Implementations must be safe for concurrent use; the cache may call Load
// from any goroutine.
type Loader[V any] interface {
	Load(ctx context.Context, path string) (V, error)
}

// LoaderFunc adapts an ordinary function to the Loader interface.
type LoaderFunc[V any] func(ctx context.Context, path string) (V, error)

// Load calls f(ctx, path).
func (f LoaderFunc[V]) Load(ctx context.Context, path string) (V, error) {
	return f(ctx, path)
}

// Resolver maps a key to the path its asset is loaded from.
// *registry.Registry satisfies it.
type Resolver[K comparable] interface {
	Resolve(key K) (string, error)
}
