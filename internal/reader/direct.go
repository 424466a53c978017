package reader

import (
	"context"
	"log/slog"

	"github.com/bucketfs/bucketfs/pkg/types"
)

// Direct forwards every byte-range read to the store without caching.
type Direct struct {
	store  types.StoreClient
	bucket string
	logger *slog.Logger
}

// NewDirect creates a reader that always goes to the store.
func NewDirect(store types.StoreClient, bucket string, logger *slog.Logger) *Direct {
	if logger == nil {
		logger = slog.Default()
	}
	return &Direct{
		store:  store,
		bucket: bucket,
		logger: logger.With("component", "reader"),
	}
}

// Read implements Reader.
func (d *Direct) Read(ctx context.Context, key string, buf []byte, offset int64) (int, error) {
	d.logger.Debug("reading from store", "key", key, "offset", offset, "length", len(buf))

	data, err := d.store.Read(ctx, d.bucket, key, offset, int64(len(buf)))
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

// Invalidate implements Reader; a direct reader holds no state.
func (d *Direct) Invalidate(key string) {}

// Clear implements Reader; a direct reader holds no state.
func (d *Direct) Clear() {}
