package cache

import (
	"sync"
	"time"

	"github.com/autorename/autorename/internal/logger"
)

const (
	// DefaultMaxSize is the default maximum number of items in cache
	DefaultMaxSize = 1000
	// DefaultExpiry is the default expiration duration for cache items
	DefaultExpiry = 5 * time.Minute
	// DefaultCleanupInterval is how often expired items are dropped
	DefaultCleanupInterval = time.Minute
)

type item[V any] struct {
	value     V
	expiresAt time.Time
	// insertion stamp, used to pick the eviction victim
	seq uint64
}

// Cache is a size-bounded in-memory map with per-item expiry. When full, the
// oldest insertion is evicted.
type Cache[K comparable, V any] struct {
	mu              sync.Mutex
	items           map[K]*item[V]
	maxSize         int
	defaultExpiry   time.Duration
	cleanupInterval time.Duration
	seq             uint64
	now             func() time.Time
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// New creates a cache with default settings.
func New[K comparable, V any]() *Cache[K, V] {
	return NewWithConfig[K, V](DefaultMaxSize, DefaultExpiry, DefaultCleanupInterval)
}

// NewWithConfig creates a cache and starts its cleanup goroutine. A
// cleanupInterval of zero disables background cleanup.
func NewWithConfig[K comparable, V any](maxSize int, defaultExpiry, cleanupInterval time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		items:           make(map[K]*item[V]),
		maxSize:         maxSize,
		defaultExpiry:   defaultExpiry,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.runCleanup()
	}
	return c
}

// Set stores value with the default expiry.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithExpiry(key, value, c.defaultExpiry)
}

func (c *Cache[K, V]) SetWithExpiry(key K, value V, expiry time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, value, expiry)
}

// SetIfAbsent stores value unless a live entry exists. It reports whether the
// value was stored.
func (c *Cache[K, V]) SetIfAbsent(key K, value V, expiry time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[key]; ok && !c.expired(it) {
		return false
	}
	c.put(key, value, expiry)
	return true
}

// caller holds c.mu
func (c *Cache[K, V]) put(key K, value V, expiry time.Duration) {
	if _, exists := c.items[key]; !exists && c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.seq++
	c.items[key] = &item[V]{value: value, expiresAt: c.now().Add(expiry), seq: c.seq}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	it, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.expired(it) {
		delete(c.items, key)
		return zero, false
	}
	return it.value, true
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Size counts stored items, expired ones included until cleanup.
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics
type Stats struct {
	Size          int
	MaxSize       int
	DefaultExpiry time.Duration
	ExpiredItems  int
}

func (c *Cache[K, V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := 0
	for _, it := range c.items {
		if c.expired(it) {
			expired++
		}
	}
	return Stats{
		Size:          len(c.items),
		MaxSize:       c.maxSize,
		DefaultExpiry: c.defaultExpiry,
		ExpiredItems:  expired,
	}
}

// Close stops the cleanup goroutine. Safe to call twice.
func (c *Cache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

func (c *Cache[K, V]) expired(it *item[V]) bool {
	return !c.now().Before(it.expiresAt)
}

func (c *Cache[K, V]) runCleanup() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Cache cleanup panicked", map[string]interface{}{
				"panic": r,
			})
		}
	}()

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache[K, V]) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, it := range c.items {
		if c.expired(it) {
			delete(c.items, key)
		}
	}
}

// caller holds c.mu
func (c *Cache[K, V]) evictOldest() {
	var (
		victim K
		oldest uint64
		found  bool
	)
	for key, it := range c.items {
		if !found || it.seq < oldest {
			victim, oldest, found = key, it.seq, true
		}
	}
	if found {
		delete(c.items, victim)
	}
}
