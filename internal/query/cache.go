// Package query is a keyed result cache that collapses concurrent fetches of
// the same key and lets writers invalidate what readers have cached.
package query

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the value for a key.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	value    any
	cachedAt time.Time
}

// Cache stores successful fetch results per key.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]entry
	gens      map[string]uint64
	listeners map[string][]func()
	ttl       time.Duration
	group     singleflight.Group

	// FetchTimeout bounds a shared fetch once it is detached from its caller.
	FetchTimeout time.Duration
}

// DefaultFetchTimeout is the FetchTimeout of a new cache.
const DefaultFetchTimeout = 30 * time.Second

// NewCache creates a cache. A zero ttl keeps entries until invalidated.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries:   make(map[string]entry),
		gens:      make(map[string]uint64),
		listeners: make(map[string][]func()),
		ttl:       ttl,

		FetchTimeout: DefaultFetchTimeout,
	}
}

// Get returns the cached value for key or runs fetch. Concurrent callers for
// the same key share one fetch. Errors are never cached.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) (any, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}

	c.mu.RLock()
	gen := c.gens[key]
	c.mu.RUnlock()

	ch := c.group.DoChan(key, func() (any, error) {
		// The fetch is shared, so it must not die with the caller that started it.
		timeout := c.FetchTimeout
		if timeout <= 0 {
			timeout = DefaultFetchTimeout
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// An Invalidate during the fetch makes this result stale.
		if c.gens[key] == gen {
			c.entries[key] = entry{value: v, cachedAt: time.Now()}
		}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns a fresh cached value without fetching.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.cachedAt) > c.ttl {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops the cached value for key and notifies its listeners.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.gens[key]++
	listeners := append([]func(){}, c.listeners[key]...)
	c.mu.Unlock()

	c.group.Forget(key)
	for _, fn := range listeners {
		fn()
	}
}

// OnInvalidate registers fn to run after every Invalidate of key.
func (c *Cache) OnInvalidate(key string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[key] = append(c.listeners[key], fn)
}
