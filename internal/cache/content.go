package cache

import (
	"container/list"
	"sync"
)

// ContentCache is a thread-safe LRU cache of whole objects, keyed by object
// key. Capacity is bounded by total bytes; a maxBytes of zero or less means
// unbounded.
type ContentCache struct {
	mu          sync.Mutex
	maxBytes    int64
	currentSize int64
	items       map[string]*list.Element
	evictList   *list.List

	stats ContentStats
}

// ContentStats reports cache effectiveness counters.
type ContentStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int64  `json:"size"`
	Entries   int    `json:"entries"`
}

type contentItem struct {
	key  string
	data []byte
}

// NewContentCache creates a content cache bounded to maxBytes total.
func NewContentCache(maxBytes int64) *ContentCache {
	return &ContentCache{
		maxBytes:  maxBytes,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get returns the cached content for key. The returned slice is the cache's
// internal buffer and must not be modified by the caller.
func (c *ContentCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.evictList.MoveToFront(element)
	c.stats.Hits++
	return element.Value.(*contentItem).data, true
}

// Put stores content for key, taking ownership of data. Objects larger than
// the cache capacity are not stored at all.
func (c *ContentCache) Put(key string, data []byte) {
	size := int64(len(data))
	if c.maxBytes > 0 && size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		item := element.Value.(*contentItem)
		c.currentSize += size - int64(len(item.data))
		item.data = data
		c.evictList.MoveToFront(element)
	} else {
		element := c.evictList.PushFront(&contentItem{key: key, data: data})
		c.items[key] = element
		c.currentSize += size
	}

	c.evictIfNeeded()
}

// Invalidate drops the entry for key, if present.
func (c *ContentCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		c.removeElement(element)
	}
}

// Clear drops every entry.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.currentSize = 0
}

// Stats returns a snapshot of the cache counters.
func (c *ContentCache) Stats() ContentStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.currentSize
	stats.Entries = len(c.items)
	return stats
}

// Size returns the total bytes currently cached.
func (c *ContentCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

func (c *ContentCache) evictIfNeeded() {
	if c.maxBytes <= 0 {
		return
	}
	for c.currentSize > c.maxBytes && c.evictList.Len() > 0 {
		element := c.evictList.Back()
		if element == nil {
			return
		}
		c.removeElement(element)
		c.stats.Evictions++
	}
}

func (c *ContentCache) removeElement(element *list.Element) {
	item := element.Value.(*contentItem)
	c.evictList.Remove(element)
	delete(c.items, item.key)
	c.currentSize -= int64(len(item.data))
}
