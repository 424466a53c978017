package mongodb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Database != "bucketfs" {
		t.Errorf("Expected database bucketfs, got %s", cfg.Database)
	}
	if cfg.Collection != "objects" {
		t.Errorf("Expected collection objects, got %s", cfg.Collection)
	}
	if cfg.Timeout <= 0 {
		t.Error("Expected positive timeout")
	}
	if cfg.URI != "" {
		t.Error("Expected URI to be unset by default")
	}
}

func TestNewRequiresURI(t *testing.T) {
	_, err := New(context.Background(), &Config{}, nil)
	if err == nil {
		t.Fatal("Expected error for empty URI")
	}
}

// TestStoreContract runs the full store contract against a live server.
// Set BUCKETFS_MONGODB_TEST_URI to run it, for example:
//
//	BUCKETFS_MONGODB_TEST_URI="mongodb://localhost:27017" go test ./internal/storage/mongodb/
func TestStoreContract(t *testing.T) {
	uri := os.Getenv("BUCKETFS_MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("BUCKETFS_MONGODB_TEST_URI not set")
	}

	ctx := context.Background()
	store, err := New(ctx, &Config{URI: uri, Database: "bucketfs_test"}, nil)
	require.NoError(t, err)
	defer store.Close()

	bucket := fmt.Sprintf("contract-test-%d", time.Now().UnixNano())
	content := []byte("hello mongodb object store")

	require.NoError(t, store.Write(ctx, bucket, "dir/a.txt", content))
	require.NoError(t, store.Write(ctx, bucket, "dir/sub/b.txt", []byte("nested")))
	require.NoError(t, store.Write(ctx, bucket, "top.txt", []byte("top")))
	defer func() {
		for _, key := range []string{"dir/a.txt", "dir/sub/b.txt", "top.txt"} {
			_ = store.Delete(ctx, bucket, key)
		}
	}()

	t.Run("metadata", func(t *testing.T) {
		info, err := store.GetMetadata(ctx, bucket, "dir/a.txt")
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), info.Size)
		assert.NotEmpty(t, info.ETag)
		assert.WithinDuration(t, time.Now(), info.LastModified, time.Minute)
	})

	t.Run("metadata missing", func(t *testing.T) {
		_, err := store.GetMetadata(ctx, bucket, "nope.txt")
		assert.True(t, bfserrors.IsNotFound(err))
	})

	t.Run("read ranges", func(t *testing.T) {
		data, err := store.Read(ctx, bucket, "dir/a.txt", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, content, data)

		data, err = store.Read(ctx, bucket, "dir/a.txt", 6, 7)
		require.NoError(t, err)
		assert.Equal(t, []byte("mongodb"), data)

		data, err = store.Read(ctx, bucket, "dir/a.txt", int64(len(content))+10, 4)
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("read missing", func(t *testing.T) {
		_, err := store.Read(ctx, bucket, "nope.txt", 0, 0)
		assert.True(t, bfserrors.IsNotFound(err))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, bucket, "dir/a.txt", []byte("v2")))
		data, err := store.Read(ctx, bucket, "dir/a.txt", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), data)
		require.NoError(t, store.Write(ctx, bucket, "dir/a.txt", content))
	})

	t.Run("list with delimiter", func(t *testing.T) {
		result, err := store.List(ctx, bucket, "", "/", 0)
		require.NoError(t, err)
		var keys []string
		for _, obj := range result.Objects {
			keys = append(keys, obj.Key)
		}
		assert.Equal(t, []string{"top.txt"}, keys)
		assert.Equal(t, []string{"dir/"}, result.Prefixes)
	})

	t.Run("list nested prefix", func(t *testing.T) {
		result, err := store.List(ctx, bucket, "dir/", "/", 0)
		require.NoError(t, err)
		require.Len(t, result.Objects, 1)
		assert.Equal(t, "dir/a.txt", result.Objects[0].Key)
		assert.Equal(t, []string{"dir/sub/"}, result.Prefixes)
	})

	t.Run("delete missing succeeds", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, bucket, "never-existed.txt"))
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, store.HealthCheck(ctx, bucket))
	})
}
