// Package cache holds the short-lived anomaly subsets behind download links.
package cache

import (
	"sync"
	"time"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/pattern-analyzer/internal/metrics"
)

type entry struct {
	key       string
	rows      analysis.ResultSet
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// ResultCache is a TTL and capacity bounded LRU keyed by file id.
// head.next is the most recently used entry, tail.prev the least.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry
	head     *entry
	tail     *entry

	now func() time.Time
}

// NewResultCache creates a cache. Non-positive arguments fall back to
// 1000 entries and one hour.
func NewResultCache(capacity int, ttl time.Duration) *ResultCache {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry),
		head:     &entry{},
		tail:     &entry{},
		now:      time.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Put stores rows under id, replacing any earlier value.
func (c *ResultCache) Put(id string, rows analysis.ResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if e, ok := c.items[id]; ok {
		e.rows = rows
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: id, rows: rows, expiresAt: expiresAt}
	c.addToFront(e)
	c.items[id] = e
	for len(c.items) > c.capacity {
		c.remove(c.tail.prev)
		metrics.CacheEvictions.WithLabelValues("capacity").Inc()
	}
	metrics.CacheEntries.Set(float64(len(c.items)))
}

// Get returns the rows stored under id. Expired entries count as missing.
func (c *ResultCache) Get(id string) (analysis.ResultSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[id]
	if !ok {
		metrics.CacheMisses.Inc()
		return analysis.ResultSet{}, false
	}
	if c.now().After(e.expiresAt) {
		c.remove(e)
		metrics.CacheEvictions.WithLabelValues("expired").Inc()
		metrics.CacheEntries.Set(float64(len(c.items)))
		metrics.CacheMisses.Inc()
		return analysis.ResultSet{}, false
	}
	c.moveToFront(e)
	metrics.CacheHits.Inc()
	return e.rows, true
}

// Purge drops every expired entry and returns how many were removed.
func (c *ResultCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			c.remove(e)
			n++
		}
		e = prev
	}
	if n > 0 {
		metrics.CacheEvictions.WithLabelValues("expired").Add(float64(n))
	}
	metrics.CacheEntries.Set(float64(len(c.items)))
	return n
}

// Len returns the number of entries, expired ones included until purged.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *ResultCache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *ResultCache) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *ResultCache) remove(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
	delete(c.items, e.key)
}
