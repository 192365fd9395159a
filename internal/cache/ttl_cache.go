package cache

import (
	"log/slog"
	"sync"
	"time"
)

// entry is a cached item with its expiration time
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe cache with sliding expiration.
// Every successful Get pushes the entry's deadline forward by the TTL.
type TTLCache[V any] struct {
	items         map[string]*entry[V]
	mutex         sync.Mutex
	ttl           time.Duration
	onEvict       func(key string, value V)
	now           func() time.Time
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// NewTTLCache creates a new TTL cache with specified TTL and cleanup interval.
// onEvict, when non-nil, is called for every entry removed by expiry or Delete.
func NewTTLCache[V any](ttl, cleanupInterval time.Duration, onEvict func(key string, value V)) *TTLCache[V] {
	cache := &TTLCache[V]{
		items:       make(map[string]*entry[V]),
		ttl:         ttl,
		onEvict:     onEvict,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	cache.cleanupTicker = time.NewTicker(cleanupInterval)
	go cache.cleanupExpiredEntries()

	slog.Info("TTL cache initialized",
		"ttl", ttl.String(),
		"cleanup_interval", cleanupInterval.String())

	return cache
}

// Set stores a value in the cache with TTL
func (c *TTLCache[V]) Set(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	expiresAt := c.now().Add(c.ttl)
	c.items[key] = &entry[V]{value: value, expiresAt: expiresAt}

	slog.Debug("Cache entry set",
		"key", key,
		"expires_at", expiresAt.Format(time.RFC3339))
}

// Get retrieves a value if it exists and hasn't expired, refreshing its deadline
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var zero V
	item, exists := c.items[key]
	if !exists {
		return zero, false
	}

	now := c.now()
	if now.After(item.expiresAt) {
		slog.Debug("Cache entry expired", "key", key)
		return zero, false
	}

	item.expiresAt = now.Add(c.ttl)
	return item.value, true
}

// GetOrCreate returns the live value for key, storing create() when absent or expired.
// An expired entry that is replaced goes through the eviction hook.
func (c *TTLCache[V]) GetOrCreate(key string, create func() V) V {
	c.mutex.Lock()

	now := c.now()
	item, exists := c.items[key]
	if exists && !now.After(item.expiresAt) {
		item.expiresAt = now.Add(c.ttl)
		c.mutex.Unlock()
		return item.value
	}

	value := create()
	c.items[key] = &entry[V]{value: value, expiresAt: now.Add(c.ttl)}
	c.mutex.Unlock()

	if exists {
		c.evict(key, item.value)
		slog.Debug("Expired cache entry replaced", "key", key)
	} else {
		slog.Debug("Cache entry created", "key", key)
	}
	return value
}

// Delete removes a specific key from the cache
func (c *TTLCache[V]) Delete(key string) {
	c.mutex.Lock()
	item, exists := c.items[key]
	delete(c.items, key)
	c.mutex.Unlock()

	if exists {
		c.evict(key, item.value)
		slog.Debug("Cache entry deleted", "key", key)
	}
}

// ActiveSize returns the number of non-expired items in the cache
func (c *TTLCache[V]) ActiveSize() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	activeCount := 0
	for _, item := range c.items {
		if !now.After(item.expiresAt) {
			activeCount++
		}
	}
	return activeCount
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (c *TTLCache[V]) Stop() {
	c.stopOnce.Do(func() {
		c.cleanupTicker.Stop()
		close(c.stopCleanup)
		slog.Info("TTL cache stopped")
	})
}

// cleanupExpiredEntries runs periodically to remove expired entries
func (c *TTLCache[V]) cleanupExpiredEntries() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// performCleanup removes expired entries and runs the eviction hook outside the lock
func (c *TTLCache[V]) performCleanup() {
	c.mutex.Lock()
	now := c.now()
	expired := make(map[string]V)
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			expired[key] = item.value
			delete(c.items, key)
		}
	}
	remaining := len(c.items)
	c.mutex.Unlock()

	for key, value := range expired {
		c.evict(key, value)
	}

	if len(expired) > 0 {
		slog.Debug("Cache cleanup completed",
			"expired_entries", len(expired),
			"remaining_entries", remaining)
	}
}

func (c *TTLCache[V]) evict(key string, value V) {
	if c.onEvict != nil {
		c.onEvict(key, value)
	}
}
