package cache

import (
	"bytes"
	"testing"
)

func TestContentCachePutGet(t *testing.T) {
	c := NewContentCache(1024)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	c.Put("a.txt", []byte("hello"))

	data, ok := c.Get("a.txt")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if !bytes.Equal(data, []byte("hello")) {
		t.Errorf("Get = %q, want %q", data, "hello")
	}
}

func TestContentCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewContentCache(10)

	c.Put("a", []byte("aaaa"))
	c.Put("b", []byte("bbbb"))

	// Touch "a" so "b" becomes the eviction candidate.
	c.Get("a")

	c.Put("c", []byte("cccc"))

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newly inserted entry should be present")
	}

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestContentCacheSkipsOversizedObjects(t *testing.T) {
	c := NewContentCache(4)

	c.Put("big", []byte("too large"))

	if _, ok := c.Get("big"); ok {
		t.Error("objects larger than capacity must not be cached")
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}

func TestContentCacheUnboundedWhenZero(t *testing.T) {
	c := NewContentCache(0)

	c.Put("a", make([]byte, 1<<20))
	c.Put("b", make([]byte, 1<<20))

	if _, ok := c.Get("a"); !ok {
		t.Error("unbounded cache must not evict")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("unbounded cache must not evict")
	}
}

func TestContentCacheReplaceUpdatesSize(t *testing.T) {
	c := NewContentCache(1024)

	c.Put("a", []byte("12345678"))
	c.Put("a", []byte("12"))

	if c.Size() != 2 {
		t.Errorf("Size = %d, want 2 after replacement", c.Size())
	}

	data, ok := c.Get("a")
	if !ok || !bytes.Equal(data, []byte("12")) {
		t.Errorf("Get = %q, want %q", data, "12")
	}
}

func TestContentCacheInvalidate(t *testing.T) {
	c := NewContentCache(1024)
	c.Put("a", []byte("data"))

	c.Invalidate("a")
	c.Invalidate("never-existed")

	if _, ok := c.Get("a"); ok {
		t.Error("invalidated entry should be gone")
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}

func TestContentCacheClear(t *testing.T) {
	c := NewContentCache(1024)
	c.Put("a", []byte("data"))
	c.Put("b", []byte("more"))

	c.Clear()

	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0 after clear", c.Size())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("cleared cache should hold no entries")
	}
}

func TestContentCacheStats(t *testing.T) {
	c := NewContentCache(1024)
	c.Put("a", []byte("data"))

	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
	if stats.Size != 4 {
		t.Errorf("Size = %d, want 4", stats.Size)
	}
}
