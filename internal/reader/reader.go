// Package reader provides the content-read pipeline between the filesystem
// and the object store. Readers are interchangeable and fixed at mount time:
// a direct store reader, an optional whole-object caching decorator, and a
// synthetic reader for tests and offline runs.
package reader

import (
	"context"
	"log/slog"

	"github.com/bucketfs/bucketfs/internal/cache"
	"github.com/bucketfs/bucketfs/internal/metrics"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// initialFetchSize is the starting buffer for whole-object pulls; the buffer
// doubles until a short or empty read marks the end of the object.
const initialFetchSize = 1 << 20

// Reader serves byte ranges of object content.
type Reader interface {
	// Read fills buf with object content starting at offset and returns
	// the number of bytes read. Reads at or past the end of the object
	// return zero; an unknown key returns a not-found error.
	Read(ctx context.Context, key string, buf []byte, offset int64) (int, error)

	// Invalidate drops any cached content for key.
	Invalidate(key string)

	// Clear drops all cached content.
	Clear()
}

// Config selects and parameterizes the reader chain.
type Config struct {
	UseDummy      bool
	Fixtures      map[string]string
	CacheContent  bool
	CacheMaxBytes int64
}

// New builds the reader chain for a mount: a dummy or direct base reader,
// optionally wrapped by the content-caching decorator.
func New(cfg Config, store types.StoreClient, bucket string, collector *metrics.Collector, logger *slog.Logger) Reader {
	if logger == nil {
		logger = slog.Default()
	}

	var base Reader
	if cfg.UseDummy {
		dummy := NewDummy()
		for key, content := range cfg.Fixtures {
			dummy.SetObject(key, []byte(content))
		}
		base = dummy
	} else {
		base = NewDirect(store, bucket, logger)
	}

	if cfg.CacheContent {
		return NewCached(base, cache.NewContentCache(cfg.CacheMaxBytes), collector, logger)
	}
	return base
}

// ReadAll pulls the entire object for key through r, growing the buffer
// until a short or empty read. It is shared by the caching decorator and by
// truncate, which must seed a write buffer with current remote content.
func ReadAll(ctx context.Context, r Reader, key string) ([]byte, error) {
	return readAll(ctx, r, key, initialFetchSize)
}

func readAll(ctx context.Context, r Reader, key string, initialSize int) ([]byte, error) {
	if initialSize <= 0 {
		initialSize = initialFetchSize
	}

	buf := make([]byte, initialSize)
	total := 0
	for {
		if total == len(buf) {
			grown := make([]byte, len(buf)*2)
			copy(grown, buf)
			buf = grown
		}

		n, err := r.Read(ctx, key, buf[total:], int64(total))
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			break
		}

		short := n < len(buf)-total
		total += n
		if short {
			break
		}
	}
	return buf[:total], nil
}

// copyRange copies content[offset:] into buf, clamping at the end of the
// content, and returns the number of bytes copied.
func copyRange(content, buf []byte, offset int64) int {
	if offset >= int64(len(content)) {
		return 0
	}
	return copy(buf, content[offset:])
}
