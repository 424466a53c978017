// Package memory implements an in-memory object store. It backs tests and
// local experimentation with the same contract as the real drivers, and can
// inject failures and count calls so callers can assert on their round-trip
// behavior.
package memory

import (
	"context"
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
	"github.com/bucketfs/bucketfs/pkg/utils"
)

type object struct {
	data    []byte
	modTime time.Time
}

// Store is an in-memory types.StoreClient. Buckets spring into existence on
// first write.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]object
	calls   map[string]int
	failOp  string
	failErr error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		buckets: make(map[string]map[string]object),
		calls:   make(map[string]int),
	}
}

// Seed places an object without counting a call, for test setup.
func (s *Store) Seed(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(bucket, key, data)
}

// FailWith makes every subsequent call of the named operation return err.
// Passing a nil err clears the injection.
func (s *Store) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOp = op
	s.failErr = err
}

// Calls returns how many times the named operation has been invoked.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// GetMetadata implements types.StoreClient.
func (s *Store) GetMetadata(ctx context.Context, bucket, key string) (*types.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls["get_metadata"]++
	if err := s.injectedLocked("get_metadata"); err != nil {
		return nil, bfserrors.Transport("head", bucket, key, err)
	}

	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, bfserrors.NotFound("head", bucket, key)
	}
	return &types.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		LastModified: obj.modTime,
		ETag:         fmt.Sprintf("%08x", crc32.ChecksumIEEE(obj.data)),
	}, nil
}

// Read implements types.StoreClient. A length of zero or less reads to the
// end of the object; reads at or past the end return no data and no error.
func (s *Store) Read(ctx context.Context, bucket, key string, offset, length int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls["read"]++
	if err := s.injectedLocked("read"); err != nil {
		return nil, bfserrors.Transport("get", bucket, key, err)
	}

	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, bfserrors.NotFound("get", bucket, key)
	}

	size := int64(len(obj.data))
	if offset < 0 {
		offset = 0
	}
	if offset >= size {
		return nil, nil
	}
	end := size
	if length > 0 && offset+length < size {
		end = offset + length
	}

	out := make([]byte, end-offset)
	copy(out, obj.data[offset:end])
	return out, nil
}

// Write implements types.StoreClient, replacing the object atomically.
func (s *Store) Write(ctx context.Context, bucket, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls["write"]++
	if err := s.injectedLocked("write"); err != nil {
		return bfserrors.Transport("put", bucket, key, err)
	}

	s.putLocked(bucket, key, data)
	return nil
}

// Delete implements types.StoreClient. Deleting a missing object succeeds.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls["delete"]++
	if err := s.injectedLocked("delete"); err != nil {
		return bfserrors.Transport("delete", bucket, key, err)
	}

	delete(s.buckets[bucket], key)
	return nil
}

// List implements types.StoreClient with S3-style prefix and delimiter
// semantics.
func (s *Store) List(ctx context.Context, bucket, prefix, delimiter string, maxResults int) (*types.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls["list"]++
	if err := s.injectedLocked("list"); err != nil {
		return nil, bfserrors.Transport("list", bucket, "", err)
	}

	var matched []types.ObjectInfo
	for key, obj := range s.buckets[bucket] {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			matched = append(matched, types.ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.data)),
				LastModified: obj.modTime,
			})
		}
	}

	return utils.CollapseListing(matched, prefix, delimiter, maxResults), nil
}

// HealthCheck implements types.StoreClient.
func (s *Store) HealthCheck(ctx context.Context, bucket string) error {
	return nil
}

// Close implements types.StoreClient.
func (s *Store) Close() error {
	return nil
}

func (s *Store) putLocked(bucket, key string, data []byte) {
	if s.buckets[bucket] == nil {
		s.buckets[bucket] = make(map[string]object)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.buckets[bucket][key] = object{data: stored, modTime: time.Now()}
}

func (s *Store) injectedLocked(op string) error {
	if s.failOp == op && s.failErr != nil {
		return s.failErr
	}
	return nil
}
