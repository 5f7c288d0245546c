package cache

import (
	"sync"
	"time"
)

// Cache is a concurrency-safe key/value store with per-entry expiry.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]entry[V]
	now     func() time.Time
	maxSize int
}

const defaultMaxEntries = 10000

// NewTTLCache returns an in-memory cache. Expired entries are dropped lazily
// and swept when the cache reaches its size limit. A full cache evicts the
// entry closest to expiry so new keys are always stored.
func NewTTLCache[K comparable, V any]() Cache[K, V] {
	return newTTLCache[K, V](time.Now, defaultMaxEntries)
}

func NewTTLCacheWithLimit[K comparable, V any](maxEntries int) Cache[K, V] {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return newTTLCache[K, V](time.Now, maxEntries)
}

func newTTLCache[K comparable, V any](now func() time.Time, maxSize int) *ttlCache[K, V] {
	return &ttlCache[K, V]{
		items:   make(map[K]entry[V]),
		now:     now,
		maxSize: maxSize,
	}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(item.expiresAt) {
		c.mu.Lock()
		if current, ok := c.items[key]; ok && current.expiresAt.Equal(item.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return item.value, true
}

func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.sweep(now)
		if len(c.items) >= c.maxSize {
			c.evictSoonest()
		}
	}
	c.items[key] = entry[V]{value: value, expiresAt: now.Add(ttl)}
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *ttlCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *ttlCache[K, V]) sweep(now time.Time) {
	for key, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, key)
		}
	}
}

func (c *ttlCache[K, V]) evictSoonest() {
	var (
		victim  K
		soonest time.Time
		found   bool
	)
	for key, item := range c.items {
		if !found || item.expiresAt.Before(soonest) {
			victim, soonest, found = key, item.expiresAt, true
		}
	}
	if found {
		delete(c.items, victim)
	}
}
