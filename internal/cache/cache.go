// Package cache provides the result cache with LRU eviction, TTL expiry and
// dependency validation.
package cache

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/glossa/internal/deps"
	"github.com/conneroisu/glossa/internal/document"
	"github.com/conneroisu/glossa/internal/logging"
)

// Key builds the cache key of a produced resource.
func Key(path, locale, mode string) string {
	return path + "|" + locale + "|" + mode
}

// Cache maps keys to produced values. An entry is valid while it is younger
// than the TTL and none of its dependencies was modified after it was
// stored.
type Cache[V any] struct {
	entries    map[string]*Entry[V]
	dependents map[string]map[string]struct{}
	mutex      sync.Mutex
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	logger     logging.Logger
	// LRU list with dummy head and tail
	head *Entry[V]
	tail *Entry[V]

	hits          int64
	misses        int64
	sets          int64
	evictions     int64
	invalidations int64
}

// Entry is one cached value with the modification times of its
// dependencies at insertion.
type Entry[V any] struct {
	Key          string
	Value        V
	Dependencies map[string]time.Time
	CreatedAt    time.Time
	AccessedAt   time.Time

	prev *Entry[V]
	next *Entry[V]
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries       int
	Hits          int64
	Misses        int64
	Sets          int64
	Evictions     int64
	Invalidations int64
}

// HitRate returns hits over lookups, between 0 and 1.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// New creates a cache holding at most maxEntries values. A non-positive ttl
// disables expiry.
func New[V any](maxEntries int, ttl time.Duration, logger logging.Logger) *Cache[V] {
	c := &Cache[V]{
		entries:    make(map[string]*Entry[V]),
		dependents: make(map[string]map[string]struct{}),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		logger:     logging.OrDiscard(logger).WithComponent("cache"),
		head:       &Entry[V]{},
		tail:       &Entry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the value for key if it is still valid. Invalid entries are
// dropped.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var zero V
	entry, exists := c.entries[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return zero, false
	}

	if c.ttl > 0 && c.now().Sub(entry.CreatedAt) > c.ttl {
		c.remove(entry)
		atomic.AddInt64(&c.misses, 1)
		return zero, false
	}
	if changed, ok := c.changedDependency(entry); ok {
		c.logger.Debug(context.Background(), "Cache entry invalidated", "key", key, "dependency", changed)
		c.remove(entry)
		atomic.AddInt64(&c.invalidations, 1)
		atomic.AddInt64(&c.misses, 1)
		return zero, false
	}

	c.moveToFront(entry)
	entry.AccessedAt = c.now()
	atomic.AddInt64(&c.hits, 1)
	return entry.Value, true
}

// Set stores value under key, recording the current modification time of
// each dependency.
func (c *Cache[V]) Set(key string, value V, dependencies []string) {
	recorded := make(map[string]time.Time, len(dependencies))
	for _, p := range dependencies {
		if local, ok := deps.FilePath(p); ok {
			recorded[local] = document.ModTime(local)
		}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, exists := c.entries[key]; exists {
		c.remove(existing)
	}
	c.evictIfNeeded()

	now := c.now()
	entry := &Entry[V]{
		Key:          key,
		Value:        value,
		Dependencies: recorded,
		CreatedAt:    now,
		AccessedAt:   now,
	}
	c.entries[key] = entry
	for p := range recorded {
		keys := c.dependents[p]
		if keys == nil {
			keys = make(map[string]struct{})
			c.dependents[p] = keys
		}
		keys[key] = struct{}{}
	}
	c.addToFront(entry)
	atomic.AddInt64(&c.sets, 1)
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if exists {
		c.remove(entry)
	}
	return exists
}

// InvalidateDependency drops every entry that depends on path and returns
// how many were dropped.
func (c *Cache[V]) InvalidateDependency(path string) int {
	local, ok := deps.FilePath(path)
	if !ok {
		return 0
	}
	local = filepath.Clean(local)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	invalidated := 0
	for key := range c.dependents[local] {
		if entry, exists := c.entries[key]; exists {
			c.remove(entry)
			invalidated++
		}
	}
	atomic.AddInt64(&c.invalidations, int64(invalidated))
	return invalidated
}

// Keys returns the cached keys, most recently used first.
func (c *Cache[V]) Keys() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	keys := make([]string, 0, len(c.entries))
	for e := c.head.next; e != c.tail; e = e.next {
		keys = append(keys, e.Key)
	}
	return keys
}

// Len returns the number of entries, valid or not.
func (c *Cache[V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Clear removes every entry and resets the counters.
func (c *Cache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*Entry[V])
	c.dependents = make(map[string]map[string]struct{})
	c.head.next = c.tail
	c.tail.prev = c.head

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.sets, 0)
	atomic.StoreInt64(&c.evictions, 0)
	atomic.StoreInt64(&c.invalidations, 0)
}

// Stats returns the current counters.
func (c *Cache[V]) Stats() Stats {
	c.mutex.Lock()
	entries := len(c.entries)
	c.mutex.Unlock()

	return Stats{
		Entries:       entries,
		Hits:          atomic.LoadInt64(&c.hits),
		Misses:        atomic.LoadInt64(&c.misses),
		Sets:          atomic.LoadInt64(&c.sets),
		Evictions:     atomic.LoadInt64(&c.evictions),
		Invalidations: atomic.LoadInt64(&c.invalidations),
	}
}

// changedDependency returns the first dependency modified after the entry
// recorded it. Greater-than comparison: an unchanged or older time is valid.
func (c *Cache[V]) changedDependency(entry *Entry[V]) (string, bool) {
	for p, recorded := range entry.Dependencies {
		if document.ModTime(p).After(recorded) {
			return p, true
		}
	}
	return "", false
}

func (c *Cache[V]) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}
	for len(c.entries) >= c.maxEntries && c.tail.prev != c.head {
		c.remove(c.tail.prev)
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *Cache[V]) remove(entry *Entry[V]) {
	c.removeFromList(entry)
	delete(c.entries, entry.Key)
	for p := range entry.Dependencies {
		if keys := c.dependents[p]; keys != nil {
			delete(keys, entry.Key)
			if len(keys) == 0 {
				delete(c.dependents, p)
			}
		}
	}
}

// LRU doubly-linked list operations
func (c *Cache[V]) addToFront(entry *Entry[V]) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *Cache[V]) removeFromList(entry *Entry[V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (c *Cache[V]) moveToFront(entry *Entry[V]) {
	c.removeFromList(entry)
	c.addToFront(entry)
}
