// Package cache provides the LRU caches behind the prepared statement cache
// and the in-memory schema metadata store.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// LRU is a fixed capacity, concurrency safe cache with least recently used
// eviction. OnEvict, when set, receives every value that leaves the cache
// through eviction, replacement, Delete or Clear.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lruList  *list.List
	onEvict  func(key string, value V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry[V any] struct {
	key   string
	value V
}

// NewLRU returns a cache holding at most capacity entries. A capacity below 1
// uses defaultCapacity.
func NewLRU[V any](capacity, defaultCapacity int, onEvict func(key string, value V)) *LRU[V] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
		onEvict:  onEvict,
	}
}

// Get returns the value stored under key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.lruList.MoveToFront(elem)
	c.hits.Add(1)
	return elem.Value.(*entry[V]).value, true
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lruList.MoveToFront(elem)
		e := elem.Value.(*entry[V])
		old := e.value
		e.value = value
		c.release(key, old)
		return
	}

	if c.lruList.Len() >= c.capacity {
		c.evictOldest()
	}
	c.items[key] = c.lruList.PushFront(&entry[V]{key: key, value: value})
}

// Delete removes key. It reports whether the key was present.
func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.lruList.Remove(elem)
	delete(c.items, key)
	c.release(key, elem.Value.(*entry[V]).value)
	return true
}

// evictOldest must be called with the lock held.
func (c *LRU[V]) evictOldest() {
	elem := c.lruList.Back()
	if elem == nil {
		return
	}
	c.lruList.Remove(elem)
	e := elem.Value.(*entry[V])
	delete(c.items, e.key)
	c.release(e.key, e.value)
	c.evictions.Add(1)
}

func (c *LRU[V]) release(key string, value V) {
	if c.onEvict != nil {
		c.onEvict(key, value)
	}
}

// Clear removes every entry.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[V])
		c.release(e.key, e.value)
	}
	c.items = make(map[string]*list.Element, c.capacity)
	c.lruList.Init()
}

// Len returns the number of entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// Keys returns the keys from most to least recently used.
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.lruList.Len())
	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry[V]).key)
	}
	return keys
}

// Stats holds cache performance metrics.
type Stats struct {
	Size      int     // Current number of entries.
	Capacity  int     // Maximum capacity.
	Hits      uint64  // Number of successful lookups.
	Misses    uint64  // Number of failed lookups.
	Evictions uint64  // Number of entries evicted for capacity.
	HitRate   float64 // hits / (hits + misses).
}

// Stats returns cache statistics.
func (c *LRU[V]) Stats() Stats {
	size := c.Len()
	hits := c.hits.Load()
	misses := c.misses.Load()

	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Size:      size,
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   hitRate,
	}
}
