package reader

import (
	"context"
	"log/slog"

	"github.com/bucketfs/bucketfs/internal/cache"
	"github.com/bucketfs/bucketfs/internal/metrics"
)

// Cached decorates another reader with a whole-object content cache. On a
// miss it pulls the complete object through the wrapped reader and serves
// the requested slice from memory; later reads hit the cache until the key
// is invalidated.
type Cached struct {
	underlying Reader
	content    *cache.ContentCache
	collector  *metrics.Collector
	logger     *slog.Logger

	// fetchInitial is the starting whole-object buffer size, reduced in
	// tests to exercise the growth loop.
	fetchInitial int
}

// NewCached wraps underlying with the content cache.
func NewCached(underlying Reader, content *cache.ContentCache, collector *metrics.Collector, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		underlying:   underlying,
		content:      content,
		collector:    collector,
		logger:       logger.With("component", "reader"),
		fetchInitial: initialFetchSize,
	}
}

// Read implements Reader.
func (c *Cached) Read(ctx context.Context, key string, buf []byte, offset int64) (int, error) {
	if data, ok := c.content.Get(key); ok {
		c.collector.RecordCacheEvent("content", true)
		return copyRange(data, buf, offset), nil
	}
	c.collector.RecordCacheEvent("content", false)

	data, err := readAll(ctx, c.underlying, key, c.fetchInitial)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}

	c.content.Put(key, data)
	c.logger.Debug("cached object content", "key", key, "size", len(data))

	return copyRange(data, buf, offset), nil
}

// Invalidate implements Reader, dropping only the decorator's copy.
func (c *Cached) Invalidate(key string) {
	c.content.Invalidate(key)
}

// Clear implements Reader.
func (c *Cached) Clear() {
	c.content.Clear()
}

// CacheStats reports the decorator's cache counters.
func (c *Cached) CacheStats() cache.ContentStats {
	return c.content.Stats()
}
