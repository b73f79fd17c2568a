package cache

import (
	"container/list"
	"sync"
)

// MemoryCache is the L1 tier: a byte-bounded LRU.
type MemoryCache struct {
	capacity int64
	size     int64

	items    map[string]*list.Element
	eviction *list.List

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	key   string
	value []byte
}

// NewMemoryCache creates a new memory cache with the specified capacity in bytes.
func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

// Get retrieves a value and marks it most recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	c.stats.Hits++
	return elem.Value.(*memoryEntry).value, true
}

// Put stores a value, evicting least recently used entries to make room.
func (c *MemoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	valueSize := int64(len(value))
	if valueSize > c.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}

	for c.size+valueSize > c.capacity && c.eviction.Len() > 0 {
		c.remove(c.eviction.Back())
		c.stats.Evictions++
	}

	c.items[key] = c.eviction.PushFront(&memoryEntry{key: key, value: value})
	c.size += valueSize

	return nil
}

// Delete removes an entry.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Capacity = c.capacity
	stats.Size = c.size
	stats.ItemCount = int64(len(c.items))
	return stats
}

func (c *MemoryCache) remove(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	c.eviction.Remove(elem)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.value))
}
