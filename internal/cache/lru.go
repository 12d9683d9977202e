package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/permuto/internal/resource"
)

// LRU is a byte-bounded least-recently-used cache of immutable blobs keyed
// by name. Returned slices must be treated as read-only.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[string]*list.Element
	order    *list.List
	rc       *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	name  string
	value []byte
}

// NewLRU creates a cache holding at most capacity bytes.
// If rc is non-nil, cached bytes are also charged to it.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		rc:       rc,
	}
}

// Get returns the cached blob.
func (c *LRU) Get(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[name]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Set caches b under name, replacing any previous value. Blobs larger than
// the capacity, or refused by the resource controller, are not cached.
func (c *LRU) Set(name string, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[name]; ok {
		c.remove(el)
	}

	n := int64(len(b))
	if n > c.capacity {
		return
	}

	// Evicting first hands memory back to the controller before we ask again.
	for c.size+n > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.remove(back)
	}

	if err := c.rc.AcquireMemory(n); err != nil {
		return
	}

	c.items[name] = c.order.PushFront(&entry{name: name, value: b})
	c.size += n
}

// Invalidate removes every entry whose name matches.
func (c *LRU) Invalidate(match func(name string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, el := range c.items {
		if match(name) {
			c.remove(el)
		}
	}
}

// Purge removes all entries.
func (c *LRU) Purge() {
	c.Invalidate(func(string) bool { return true })
}

func (c *LRU) remove(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.items, e.name)
	n := int64(len(e.value))
	c.size -= n
	c.rc.ReleaseMemory(n)
}

// Stats returns hit and miss counts.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached blobs.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
