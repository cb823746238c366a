package reference

import (
	"context"
	"slices"
	"sync"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
	"github.com/couchcryptid/hrrr-inventory/internal/observability"
)

// CachedSource wraps a ReferenceSource with an in-memory LRU cache. Each page
// serves several inventories (one per cycle type), so a bulk run fetches it
// once.
type CachedSource struct {
	inner   domain.ReferenceSource
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a reference source.
func NewCachedSource(inner domain.ReferenceSource, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) Descriptions(ctx context.Context, key domain.ReferenceKey) ([]domain.VariableDescription, error) {
	if descs, ok := c.cache.get(key); ok {
		c.metrics.ReferenceCache.WithLabelValues("hit").Inc()
		return slices.Clone(descs), nil
	}
	c.metrics.ReferenceCache.WithLabelValues("miss").Inc()

	descs, err := c.inner.Descriptions(ctx, key)
	if err != nil {
		return nil, err
	}
	// Empty tables are not cached so a truncated download can be retried.
	if len(descs) > 0 {
		c.cache.put(key, slices.Clone(descs))
	}
	return descs, nil
}

// lruCache is a simple thread-safe LRU cache of reference tables.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[domain.ReferenceKey]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   domain.ReferenceKey
	value []domain.VariableDescription
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[domain.ReferenceKey]*entry),
	}
}

func (c *lruCache) get(key domain.ReferenceKey) ([]domain.VariableDescription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key domain.ReferenceKey, value []domain.VariableDescription) {
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

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
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

func (c *lruCache) remove(e *entry) {
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
	c.remove(c.tail)
}
