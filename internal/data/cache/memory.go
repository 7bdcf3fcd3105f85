package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// TTLCache is the in-process tier. Values are held JSON-encoded so callers
// never share mutable state with the cache.
type TTLCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	maxEntries int
	stats      Stats
	now        func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	value    []byte
	expires  time.Time
	accessed time.Time
}

// NewTTLCache creates a new TTL cache with specified maximum entries
func NewTTLCache(maxEntries int) *TTLCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	c := &TTLCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *TTLCache) Name() string { return "memory" }

// Get decodes a live entry into dest
func (c *TTLCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expires) {
		c.stats.Misses++
		c.mu.Unlock()
		return ErrCacheMiss
	}
	entry.accessed = c.now()
	c.stats.Hits++
	data := entry.value
	c.mu.Unlock()

	return json.Unmarshal(data, dest)
}

// Set stores value for ttl. A non-positive ttl is a no-op.
func (c *TTLCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	now := c.now()
	c.entries[key] = &cacheEntry{
		value:    data,
		expires:  now.Add(ttl),
		accessed: now,
	}
	return nil
}

func (c *TTLCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Stats returns cache performance statistics
func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// Clear removes all entries from cache
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.stats = Stats{}
}

// Close shuts down the cleanup goroutine
func (c *TTLCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

// evictLRU removes the least recently used entry (caller must hold the lock)
func (c *TTLCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.accessed.Before(oldestTime) {
			oldestTime = entry.accessed
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

func (c *TTLCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *TTLCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
}
