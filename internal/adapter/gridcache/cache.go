// Package gridcache memoizes target grids read through a domain.GridSource.
package gridcache

import (
	"context"
	"sync"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
	"github.com/couchcryptid/storm-data-verify/internal/observability"
)

// CachedGridSource wraps a GridSource with an in-memory LRU cache. Cached
// grids are shared between tasks and must be treated as read-only.
type CachedGridSource struct {
	inner   domain.GridSource
	cache   *lruCache
	metrics *observability.Metrics
}

// New creates a cache decorator around a grid source.
func New(inner domain.GridSource, maxEntries int, metrics *observability.Metrics) *CachedGridSource {
	return &CachedGridSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGridSource) ReadGrid(ctx context.Context, id string) (domain.Grid, error) {
	if g, ok := c.cache.get(id); ok {
		c.metrics.GridCache.WithLabelValues("hit").Inc()
		return g, nil
	}
	c.metrics.GridCache.WithLabelValues("miss").Inc()
	g, err := c.inner.ReadGrid(ctx, id)
	if err != nil {
		// Failures are not cached so a later task can retry.
		return g, err
	}
	c.cache.put(id, g)
	return g, nil
}

// lruCache is a thread-safe LRU cache of grids keyed by identifier.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Grid
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) get(key string) (domain.Grid, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Grid{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Grid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
