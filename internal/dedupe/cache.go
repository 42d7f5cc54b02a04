// ABOUTME: Thread-safe TTL set used to run keyed actions at most once.
// ABOUTME: Guards voice task playback so a resolved task id never plays twice.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key    string
	marked time.Time
}

// Cache is a size-bounded set of recently seen keys. Expired entries are
// pruned lazily on each write; the oldest entry is evicted when full.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	index map[string]*list.Element
	order *list.List // oldest at front
}

// New creates a cache. maxSize below 1 is treated as 1.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		index:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Seen reports whether key was marked and has not expired.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return false
	}
	return c.now().Sub(el.Value.(*entry).marked) < c.ttl
}

// CheckAndMark marks key and reports whether it was already present.
// A true result means the caller should skip its action.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	if el, ok := c.index[key]; ok {
		// Still live after pruning.
		el.Value.(*entry).marked = now
		c.order.MoveToBack(el)
		return true
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*entry).key)
	}
	c.index[key] = c.order.PushBack(&entry{key: key, marked: now})
	return false
}

// Len returns the number of tracked keys, expired ones included until the
// next write prunes them.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// pruneLocked drops expired entries from the front. Must be called with mu held.
func (c *Cache) pruneLocked(now time.Time) {
	for el := c.order.Front(); el != nil; {
		e := el.Value.(*entry)
		if now.Sub(e.marked) < c.ttl {
			return
		}
		next := el.Next()
		c.order.Remove(el)
		delete(c.index, e.key)
		el = next
	}
}
