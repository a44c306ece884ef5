package assetcache

import "fmt"

// The recency list only exists when MaxEntries > 0. It holds the keys of
// loaded entries, most recently used at the front. All helpers here must be
// called with mu held.

// touch marks e as the most recently used entry.
func (c *Cache[K, V]) touch(e *entry[V]) {
	if e.elem != nil {
		c.recency.MoveToFront(e.elem)
	}
}

// track adds a freshly loaded entry to the recency list and trims the cache
// back to MaxEntries.
func (c *Cache[K, V]) track(key K, e *entry[V]) {
	if c.maxEntries <= 0 {
		return
	}
	e.elem = c.recency.PushFront(key)
	for c.recency.Len() > c.maxEntries {
		c.evictOldest()
	}
}

func (c *Cache[K, V]) untrack(e *entry[V]) {
	if e.elem != nil {
		c.recency.Remove(e.elem)
		e.elem = nil
	}
}

// evictOldest removes the least recently used loaded entry.
func (c *Cache[K, V]) evictOldest() {
	back := c.recency.Back()
	if back == nil {
		return
	}
	key := back.Value.(K)
	if !c.removeLocked(key) {
		c.recency.Remove(back)
		return
	}
	c.logger.Debug().Str("key", fmt.Sprintf("%v", key)).Msg("Evicted least recently used asset.")
}
