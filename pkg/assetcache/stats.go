package assetcache

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits         uint64 `json:"hits"`
	Joins        uint64 `json:"joins"`
	Misses       uint64 `json:"misses"`
	Loads        uint64 `json:"loads"`
	LoadFailures uint64 `json:"load_failures"`
	Evictions    uint64 `json:"evictions"`
	Size         int    `json:"size"`
	InFlight     int    `json:"in_flight"`
}

// Stats returns the current counters. Joins counts Gets that waited on a load
// started by another caller.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	size, inFlight := 0, 0
	for _, e := range c.entries {
		if e.loaded {
			size++
		} else {
			inFlight++
		}
	}
	c.mu.Unlock()

	return Stats{
		Hits:         c.hits.Load(),
		Joins:        c.joins.Load(),
		Misses:       c.misses.Load(),
		Loads:        c.loads.Load(),
		LoadFailures: c.loadFailures.Load(),
		Evictions:    c.evictions.Load(),
		Size:         size,
		InFlight:     inFlight,
	}
}
