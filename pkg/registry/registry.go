// Package registry maps typed asset keys to the paths they are loaded from.
package registry

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrUnknownKey is returned when a key was never registered.
	ErrUnknownKey = errors.New("unknown asset key")
	// ErrDuplicateKey is returned when the same key is registered twice.
	ErrDuplicateKey = errors.New("duplicate asset key")
	// ErrEmptyPath is returned when an entry has no relative path.
	ErrEmptyPath = errors.New("empty asset path")
)

// Entry binds a key to a file inside an optional base directory.
type Entry[K comparable] struct {
	Key          K
	BasePath     string
	RelativePath string
}

// Path returns the joined, slash-separated path of the entry.
func (e Entry[K]) Path() string {
	rel := strings.ReplaceAll(e.RelativePath, "\\", "/")
	if e.BasePath == "" {
		return path.Clean(rel)
	}
	return path.Join(strings.ReplaceAll(e.BasePath, "\\", "/"), rel)
}

// Registry is an immutable key to path table. It is safe for concurrent use.
type Registry[K comparable] struct {
	entries []Entry[K]
	index   map[K]int
}

// New builds a registry from the given entries. Order is preserved for Keys and Entries.
func New[K comparable](entries ...Entry[K]) (*Registry[K], error) {
	r := &Registry[K]{
		entries: make([]Entry[K], 0, len(entries)),
		index:   make(map[K]int, len(entries)),
	}
	for _, e := range entries {
		if _, exists := r.index[e.Key]; exists {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, e.Key)
		}
		if strings.TrimSpace(e.RelativePath) == "" {
			return nil, fmt.Errorf("%w: %v", ErrEmptyPath, e.Key)
		}
		r.index[e.Key] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// Resolve returns the path registered for key.
func (r *Registry[K]) Resolve(key K) (string, error) {
	i, ok := r.index[key]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrUnknownKey, key)
	}
	return r.entries[i].Path(), nil
}

// Contains reports whether key is registered.
func (r *Registry[K]) Contains(key K) bool {
	_, ok := r.index[key]
	return ok
}

// Keys returns all registered keys in registration order.
func (r *Registry[K]) Keys() []K {
	keys := make([]K, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the registered entries.
func (r *Registry[K]) Entries() []Entry[K] {
	out := make([]Entry[K], len(r.entries))
	copy(out, r.entries)
	return out
}

// Len reports the number of registered entries.
func (r *Registry[K]) Len() int {
	return len(r.entries)
}
