package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats are the counters of one cache since it was created.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Size      int
}

// LRUCache bounds entries by count and age. With sliding expiry every hit
// pushes the deadline forward, which suits session state.
type LRUCache[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	sliding  bool
	now      func() time.Time
	onEvict  func(key string, value T)
	index    map[string]*list.Element
	order    *list.List // front is most recently used
	stats    Stats
}

type entry[T any] struct {
	key      string
	value    T
	deadline time.Time
}

// NewLRUCache creates a cache whose entries expire ttl after they were set.
func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache[T]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		index:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// NewSlidingLRUCache creates a cache whose entries expire ttl after last use.
func NewSlidingLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	c := NewLRUCache[T](capacity, ttl)
	c.sliding = true
	return c
}

// OnEvict registers fn to run when an entry is dropped for capacity or age.
// It is called with the cache lock held and must not call back into it.
func (c *LRUCache[T]) OnEvict(fn func(key string, value T)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns the live value for key.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.index[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := elem.Value.(*entry[T])
	now := c.now()
	if now.After(e.deadline) {
		c.drop(elem, true)
		c.stats.Expired++
		c.stats.Misses++
		return zero, false
	}

	if c.sliding {
		e.deadline = now.Add(c.ttl)
	}
	c.order.MoveToFront(elem)
	c.stats.Hits++
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := c.now().Add(c.ttl)
	if elem, ok := c.index[key]; ok {
		e := elem.Value.(*entry[T])
		e.value, e.deadline = value, deadline
		c.order.MoveToFront(elem)
		return
	}

	c.index[key] = c.order.PushFront(&entry[T]{key: key, value: value, deadline: deadline})
	for c.order.Len() > c.capacity {
		c.drop(c.order.Back(), true)
		c.stats.Evictions++
	}
}

// Delete removes key without running the eviction hook.
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.drop(elem, false)
	}
}

func (c *LRUCache[T]) drop(elem *list.Element, notify bool) {
	e := c.order.Remove(elem).(*entry[T])
	delete(c.index, e.key)
	if notify && c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

// CleanExpired removes all expired entries and returns how many it removed.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	// Walk from the back: least recently used entries expire first.
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[T]).deadline) {
			c.drop(elem, true)
			removed++
		}
		elem = prev
	}
	c.stats.Expired += int64(removed)
	return removed
}

// Size returns the current number of entries, expired or not.
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Stats returns a snapshot of the cache counters.
func (c *LRUCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.index)
	return s
}
