package orderstest

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Cache is an in-memory orders.Cache with a settable clock.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     time.Time
	getErr  error
	setErr  error
	sets    int
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
	ttl       time.Duration
}

func NewCache() *Cache {
	return &Cache{entries: map[string]cacheEntry{}, now: time.Unix(1_700_000_000, 0)}
}

// Fail makes Get and Set return the given errors; nil clears them.
func (c *Cache) Fail(getErr, setErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getErr, c.setErr = getErr, setErr
}

// Advance moves the cache clock forward, expiring entries whose TTL passed.
func (c *Cache) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	e, ok := c.entries[key]
	if !ok || !c.now.Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, orders.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	c.entries[key] = cacheEntry{value: append([]byte(nil), value...), expiresAt: c.now.Add(ttl), ttl: ttl}
	return nil
}

// Put stores a raw value, bypassing the failure switch.
func (c *Cache) Put(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: append([]byte(nil), value...), expiresAt: c.now.Add(ttl), ttl: ttl}
}

// TTL reports the TTL the key was last written with.
func (c *Cache) TTL(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.ttl, ok
}

func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && c.now.Before(e.expiresAt)
}

func (c *Cache) Sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}
