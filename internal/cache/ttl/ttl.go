// Package ttl implements a bounded in-process cache with lazy expiry.
//
// Entries are ordered by insertion or refresh time, never by access: Get does
// not change an entry's position, so the entry evicted at capacity is always
// the one written longest ago.
package ttl

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/observability"
)

const (
	DefaultTTL        = time.Hour
	DefaultMaxEntries = 256
)

type entry[V any] struct {
	val V
	at  time.Time
}

type Cache[V any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	mu  sync.Mutex
	lru *simplelru.LRU[string, entry[V]]
	// set while removing expired or purged entries so onEvict only counts capacity evictions
	dropping bool
}

// New builds a cache; name labels its metrics.
func New[V any](name string, ttl time.Duration, maxEntries int) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache[V]{name: name, ttl: ttl, now: time.Now}
	// only errors on size <= 0
	l, _ := simplelru.NewLRU[string, entry[V]](maxEntries, func(string, entry[V]) {
		if !c.dropping {
			observability.IncCacheEviction(name)
		}
	})
	c.lru = l
	return c
}

// SetClock replaces the time source; tests only.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		observability.ObserveCache(c.name, "miss")
		return zero, false
	}
	if c.now().Sub(e.at) > c.ttl {
		c.dropping = true
		c.lru.Remove(key)
		c.dropping = false
		observability.ObserveCache(c.name, "expired")
		return zero, false
	}
	observability.ObserveCache(c.name, "hit")
	return e.val, true
}

// Put inserts or refreshes key. At capacity the oldest entry is evicted first.
func (c *Cache[V]) Put(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry[V]{val: val, at: c.now()})
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropping = true
	c.lru.Purge()
	c.dropping = false
}
