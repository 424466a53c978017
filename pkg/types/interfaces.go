package types

import (
	"context"
)

// StoreClient is the object-store wire client the engine consumes. All
// methods are synchronous; a blocked call blocks its invoking goroutine
// until the store responds or errors. Implementations must be safe for
// concurrent use and must translate driver failures into pkg/errors
// codes so callers can tell a missing object from a transport failure.
type StoreClient interface {
	// GetMetadata returns the metadata of a single object. A missing
	// key yields an error with code NotFound, never a nil ObjectInfo.
	GetMetadata(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// Read returns up to length bytes of the object starting at
	// offset. A length <= 0 reads to the end of the object. Reading at
	// or past the end of an existing object returns an empty slice and
	// no error; a missing key yields a NotFound error.
	Read(ctx context.Context, bucket, key string, offset, length int64) ([]byte, error)

	// Write stores data as the complete new content of the object,
	// replacing any previous version atomically.
	Write(ctx context.Context, bucket, key string, data []byte) error

	// Delete removes the object. Deleting a key that does not exist is
	// not an error.
	Delete(ctx context.Context, bucket, key string) error

	// List returns the objects under prefix. A non-empty delimiter
	// collapses deeper keys into ListResult.Prefixes, yielding one
	// directory level. maxResults <= 0 means no limit. An error midway
	// through the listing fails the whole call; no partial result is
	// returned.
	List(ctx context.Context, bucket, prefix, delimiter string, maxResults int) (*ListResult, error)

	// HealthCheck verifies the store is reachable and the bucket
	// accessible.
	HealthCheck(ctx context.Context, bucket string) error

	// Close releases client resources.
	Close() error
}
