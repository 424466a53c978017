package filesystem

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketfs/bucketfs/internal/cache"
	"github.com/bucketfs/bucketfs/internal/reader"
	"github.com/bucketfs/bucketfs/internal/storage/memory"
	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
)

const testBucket = "test-bucket"

func newTestFS(t *testing.T, readOnly bool) (*FileSystem, *memory.Store) {
	t.Helper()

	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs := New(Options{
		Bucket: testBucket,
		Store:  store,
		Reader: reader.New(reader.Config{
			CacheContent:  true,
			CacheMaxBytes: 1 << 20,
		}, store, testBucket, nil, logger),
		StatCache: cache.NewStatCache(time.Minute),
		Logger:    logger,
		ReadOnly:  readOnly,
	})
	return fs, store
}

func entryNames(entries []DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func TestGetAttrRoot(t *testing.T) {
	fs, store := newTestFS(t, false)

	st, rc := fs.GetAttr(context.Background(), "/")
	require.Equal(t, 0, rc)
	require.NotNil(t, st)
	assert.True(t, st.IsDir())
	assert.EqualValues(t, 2, st.Nlink)
	assert.Equal(t, 0, store.Calls("get_metadata"), "root stat must not touch the store")
}

func TestGetAttrFile(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "docs/readme.md", []byte("# hello"))

	st, rc := fs.GetAttr(context.Background(), "/docs/readme.md")
	require.Equal(t, 0, rc)
	require.NotNil(t, st)
	assert.False(t, st.IsDir())
	assert.EqualValues(t, 7, st.Size)
	assert.EqualValues(t, 1, st.Nlink)

	heads := store.Calls("get_metadata")
	_, rc = fs.GetAttr(context.Background(), "/docs/readme.md")
	require.Equal(t, 0, rc)
	assert.Equal(t, heads, store.Calls("get_metadata"), "second stat must be served from cache")
}

func TestGetAttrDirectory(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "docs/readme.md", []byte("x"))

	st, rc := fs.GetAttr(context.Background(), "/docs")
	require.Equal(t, 0, rc)
	require.NotNil(t, st)
	assert.True(t, st.IsDir())
}

func TestGetAttrDirectoryWinsOverObject(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "data", []byte("ambiguous"))
	store.Seed(testBucket, "data/part-0", []byte("chunk"))

	st, rc := fs.GetAttr(context.Background(), "/data")
	require.Equal(t, 0, rc)
	require.NotNil(t, st)
	assert.True(t, st.IsDir(), "a key that is both object and prefix presents as a directory")
}

func TestGetAttrMissing(t *testing.T) {
	fs, _ := newTestFS(t, false)

	st, rc := fs.GetAttr(context.Background(), "/no/such/file")
	assert.Equal(t, -bfserrors.ENOENT, rc)
	assert.Nil(t, st)
}

func TestGetAttrBufferedFile(t *testing.T) {
	fs, store := newTestFS(t, false)

	require.Equal(t, 0, fs.Create(context.Background(), "/scratch.txt", 0644))
	require.Equal(t, 5, fs.Write(context.Background(), "/scratch.txt", []byte("hello"), 0))

	st, rc := fs.GetAttr(context.Background(), "/scratch.txt")
	require.Equal(t, 0, rc)
	require.NotNil(t, st)
	assert.False(t, st.IsDir())
	assert.EqualValues(t, 5, st.Size)
	assert.Equal(t, 0, store.Calls("get_metadata"), "buffered files stat locally")
}

func TestGetAttrStoreError(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "file.txt", []byte("x"))
	store.FailWith("get_metadata", errors.New("socket closed"))

	st, rc := fs.GetAttr(context.Background(), "/file.txt")
	assert.Equal(t, -bfserrors.EIO, rc)
	assert.Nil(t, st)
}

func TestReadDir(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "docs/readme.md", []byte("# hello"))
	store.Seed(testBucket, "docs/guide/intro.md", []byte("intro"))
	store.Seed(testBucket, "docs/archive/", nil) // directory marker
	store.Seed(testBucket, "top.txt", []byte("unrelated"))

	entries, rc := fs.ReadDir(context.Background(), "/docs")
	require.Equal(t, 0, rc)
	assert.ElementsMatch(t,
		[]string{".", "..", "readme.md", "guide", "archive"},
		entryNames(entries))

	for _, e := range entries {
		switch e.Name {
		case "readme.md":
			assert.False(t, (e.Mode&0o170000) == 0o040000, "readme.md must be a file")
		case "guide", "archive":
			assert.True(t, (e.Mode&0o170000) == 0o040000, "%s must be a directory", e.Name)
		}
	}

	// The listing primes the stat cache: a follow-up stat of a listed
	// child must not call the store again.
	heads := store.Calls("get_metadata")
	lists := store.Calls("list")
	st, rc := fs.GetAttr(context.Background(), "/docs/readme.md")
	require.Equal(t, 0, rc)
	assert.EqualValues(t, 7, st.Size)
	assert.Equal(t, heads, store.Calls("get_metadata"))
	assert.Equal(t, lists, store.Calls("list"))
}

func TestReadDirRoot(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "a.txt", []byte("a"))
	store.Seed(testBucket, "dir/b.txt", []byte("b"))

	entries, rc := fs.ReadDir(context.Background(), "/")
	require.Equal(t, 0, rc)
	assert.ElementsMatch(t, []string{".", "..", "a.txt", "dir"}, entryNames(entries))
}

func TestReadDirIdempotent(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "docs/a.md", []byte("a"))
	store.Seed(testBucket, "docs/sub/b.md", []byte("b"))

	first, rc := fs.ReadDir(context.Background(), "/docs")
	require.Equal(t, 0, rc)
	second, rc := fs.ReadDir(context.Background(), "/docs")
	require.Equal(t, 0, rc)

	assert.ElementsMatch(t, entryNames(first), entryNames(second))
}

func TestReadDirListError(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.FailWith("list", errors.New("throttled"))

	entries, rc := fs.ReadDir(context.Background(), "/docs")
	assert.Equal(t, -bfserrors.EIO, rc)
	assert.Nil(t, entries)
}

func TestOpen(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "file.txt", []byte("content"))
	store.Seed(testBucket, "dir/child.txt", []byte("x"))

	ctx := context.Background()
	tests := []struct {
		name  string
		path  string
		flags int
		want  int
	}{
		{"read existing", "/file.txt", os.O_RDONLY, 0},
		{"read missing", "/missing.txt", os.O_RDONLY, -bfserrors.ENOENT},
		{"write missing", "/missing.txt", os.O_WRONLY, 0},
		{"readwrite missing", "/missing.txt", os.O_RDWR, 0},
		{"write existing", "/file.txt", os.O_WRONLY | os.O_TRUNC, 0},
		{"read directory", "/dir", os.O_RDONLY, -bfserrors.EISDIR},
		{"write directory", "/dir", os.O_WRONLY, -bfserrors.EISDIR},
		{"invalid access mode", "/file.txt", 0x3, -bfserrors.EINVAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fs.Open(ctx, tt.path, tt.flags))
		})
	}
}

func TestWriteThenReadStaysLocal(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()

	require.Equal(t, 0, fs.Create(ctx, "/notes.txt", 0644))
	require.Equal(t, 11, fs.Write(ctx, "/notes.txt", []byte("hello world"), 0))

	buf := make([]byte, 64)
	n := fs.Read(ctx, "/notes.txt", buf, 0)
	require.Equal(t, 11, n)
	assert.Equal(t, "hello world", string(buf[:n]))

	assert.Equal(t, 0, store.Calls("read"), "buffered reads must not hit the store")
	assert.Equal(t, 0, store.Calls("get_metadata"), "buffered reads must not stat the store")
	assert.Equal(t, 0, store.Calls("write"), "nothing may upload before flush")
}

func TestReadFromStore(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "file.txt", []byte("stored content"))
	ctx := context.Background()

	buf := make([]byte, 64)
	n := fs.Read(ctx, "/file.txt", buf, 0)
	require.Equal(t, 14, n)
	assert.Equal(t, "stored content", string(buf[:n]))

	// Offset read, served from the content cache.
	reads := store.Calls("read")
	n = fs.Read(ctx, "/file.txt", buf, 7)
	require.Equal(t, 7, n)
	assert.Equal(t, "content", string(buf[:n]))
	assert.Equal(t, reads, store.Calls("read"))

	// Past the end.
	assert.Equal(t, 0, fs.Read(ctx, "/file.txt", buf, 100))
}

func TestReadMissing(t *testing.T) {
	fs, _ := newTestFS(t, false)

	buf := make([]byte, 8)
	assert.Equal(t, -bfserrors.ENOENT, fs.Read(context.Background(), "/missing", buf, 0))
}

func TestReadStoreError(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "file.txt", []byte("content"))
	store.FailWith("read", errors.New("connection reset"))

	buf := make([]byte, 8)
	assert.Equal(t, -bfserrors.EIO, fs.Read(context.Background(), "/file.txt", buf, 0))
}

func TestFlushUploadsOnce(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()

	require.Equal(t, 0, fs.Create(ctx, "/out.txt", 0644))
	require.Equal(t, 4, fs.Write(ctx, "/out.txt", []byte("data"), 0))

	require.Equal(t, 0, fs.Flush(ctx, "/out.txt"))
	assert.Equal(t, 1, store.Calls("write"))

	// The buffer is gone after a clean upload; flushing again is a no-op.
	require.Equal(t, 0, fs.Flush(ctx, "/out.txt"))
	assert.Equal(t, 1, store.Calls("write"))

	// Content round-trips through the store.
	buf := make([]byte, 16)
	n := fs.Read(ctx, "/out.txt", buf, 0)
	require.Equal(t, 4, n)
	assert.Equal(t, "data", string(buf[:n]))
}

func TestFlushWithoutWritesIsNoOp(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "file.txt", []byte("content"))

	require.Equal(t, 0, fs.Flush(context.Background(), "/file.txt"))
	require.Equal(t, 0, fs.Release(context.Background(), "/file.txt"))
	assert.Equal(t, 0, store.Calls("write"))
}

func TestReleaseUploadsDirtyBuffer(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()

	require.Equal(t, 0, fs.Create(ctx, "/out.txt", 0644))
	require.Equal(t, 4, fs.Write(ctx, "/out.txt", []byte("data"), 0))
	require.Equal(t, 0, fs.Release(ctx, "/out.txt"))
	assert.Equal(t, 1, store.Calls("write"))
}

func TestUploadFailureKeepsBufferForRetry(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()

	require.Equal(t, 0, fs.Create(ctx, "/report.csv", 0644))
	require.Equal(t, 9, fs.Write(ctx, "/report.csv", []byte("a,b,c\n1,2"), 0))

	store.FailWith("write", errors.New("503 slow down"))
	assert.Equal(t, -bfserrors.EIO, fs.Flush(ctx, "/report.csv"))

	// The data is still readable and still pending.
	buf := make([]byte, 32)
	n := fs.Read(ctx, "/report.csv", buf, 0)
	require.Equal(t, 9, n)
	assert.Equal(t, "a,b,c\n1,2", string(buf[:n]))
	assert.Equal(t, []string{"report.csv"}, fs.DirtyKeys())

	// Once the store recovers, the retry uploads the identical bytes.
	store.FailWith("write", nil)
	require.Equal(t, 0, fs.Flush(ctx, "/report.csv"))
	assert.Empty(t, fs.DirtyKeys())

	data, err := store.Read(ctx, testBucket, "report.csv", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n1,2", string(data))
}

func TestFlushInvalidatesStaleContent(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()
	store.Seed(testBucket, "config.yml", []byte("old"))

	// Prime the content cache with the original bytes.
	buf := make([]byte, 16)
	n := fs.Read(ctx, "/config.yml", buf, 0)
	require.Equal(t, 3, n)
	require.Equal(t, "old", string(buf[:n]))

	// Rewrite and flush.
	require.Equal(t, 4, fs.Write(ctx, "/config.yml", []byte("new!"), 0))
	require.Equal(t, 0, fs.Flush(ctx, "/config.yml"))

	// The read after flush must see the new content, not the cached old.
	n = fs.Read(ctx, "/config.yml", buf, 0)
	require.Equal(t, 4, n)
	assert.Equal(t, "new!", string(buf[:n]))

	st, rc := fs.GetAttr(ctx, "/config.yml")
	require.Equal(t, 0, rc)
	assert.EqualValues(t, 4, st.Size)
}

func TestWriteSparseZeroFills(t *testing.T) {
	fs, _ := newTestFS(t, false)
	ctx := context.Background()

	require.Equal(t, 0, fs.Create(ctx, "/sparse.bin", 0644))
	require.Equal(t, 2, fs.Write(ctx, "/sparse.bin", []byte("ab"), 3))

	buf := make([]byte, 8)
	n := fs.Read(ctx, "/sparse.bin", buf, 0)
	require.Equal(t, 5, n)
	assert.Equal(t, []byte{0, 0, 0, 'a', 'b'}, buf[:n])
}

func TestTruncateSeedsFromStore(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()
	store.Seed(testBucket, "log.txt", []byte("0123456789"))

	require.Equal(t, 0, fs.Truncate(ctx, "/log.txt", 4))
	assert.Equal(t, 0, store.Calls("write"), "truncate alone must not upload")

	buf := make([]byte, 16)
	n := fs.Read(ctx, "/log.txt", buf, 0)
	require.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf[:n]))

	st, rc := fs.GetAttr(ctx, "/log.txt")
	require.Equal(t, 0, rc)
	assert.EqualValues(t, 4, st.Size)

	require.Equal(t, 0, fs.Flush(ctx, "/log.txt"))
	data, err := store.Read(ctx, testBucket, "log.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(data))
}

func TestTruncateExtendsWithZeros(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()
	store.Seed(testBucket, "f.bin", []byte("ab"))

	require.Equal(t, 0, fs.Truncate(ctx, "/f.bin", 4))

	buf := make([]byte, 8)
	n := fs.Read(ctx, "/f.bin", buf, 0)
	require.Equal(t, 4, n)
	assert.Equal(t, []byte{'a', 'b', 0, 0}, buf[:n])
}

func TestTruncateMissingCreatesEmptyBuffer(t *testing.T) {
	fs, _ := newTestFS(t, false)
	ctx := context.Background()

	require.Equal(t, 0, fs.Truncate(ctx, "/brand-new.txt", 3))

	buf := make([]byte, 8)
	n := fs.Read(ctx, "/brand-new.txt", buf, 0)
	require.Equal(t, 3, n)
	assert.Equal(t, []byte{0, 0, 0}, buf[:n])
}

func TestTruncateBufferedSkipsStore(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()

	require.Equal(t, 0, fs.Create(ctx, "/draft.txt", 0644))
	require.Equal(t, 5, fs.Write(ctx, "/draft.txt", []byte("12345"), 0))

	reads := store.Calls("read")
	require.Equal(t, 0, fs.Truncate(ctx, "/draft.txt", 2))
	assert.Equal(t, reads, store.Calls("read"), "buffered truncate must not refetch")

	buf := make([]byte, 8)
	n := fs.Read(ctx, "/draft.txt", buf, 0)
	require.Equal(t, 2, n)
	assert.Equal(t, "12", string(buf[:n]))
}

func TestTruncateDirectory(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "dir/child.txt", []byte("x"))

	assert.Equal(t, -bfserrors.EISDIR, fs.Truncate(context.Background(), "/dir", 0))
}

func TestUnlink(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()
	store.Seed(testBucket, "gone.txt", []byte("bye"))

	require.Equal(t, 0, fs.Unlink(ctx, "/gone.txt"))
	assert.Equal(t, 1, store.Calls("delete"))

	_, rc := fs.GetAttr(ctx, "/gone.txt")
	assert.Equal(t, -bfserrors.ENOENT, rc)
}

func TestUnlinkMissing(t *testing.T) {
	fs, _ := newTestFS(t, false)
	assert.Equal(t, -bfserrors.ENOENT, fs.Unlink(context.Background(), "/missing"))
}

func TestUnlinkDirectory(t *testing.T) {
	fs, store := newTestFS(t, false)
	store.Seed(testBucket, "dir/child.txt", []byte("x"))

	assert.Equal(t, -bfserrors.EISDIR, fs.Unlink(context.Background(), "/dir"))
}

func TestUnlinkDeleteFailureLeavesFile(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()
	store.Seed(testBucket, "keep.txt", []byte("still here"))

	store.FailWith("delete", errors.New("access denied"))
	assert.Equal(t, -bfserrors.EIO, fs.Unlink(ctx, "/keep.txt"))

	buf := make([]byte, 16)
	n := fs.Read(ctx, "/keep.txt", buf, 0)
	require.Equal(t, 10, n)
	assert.Equal(t, "still here", string(buf[:n]))
}

func TestUnlinkPurgesBufferedState(t *testing.T) {
	fs, store := newTestFS(t, false)
	ctx := context.Background()
	store.Seed(testBucket, "tmp.txt", []byte("seeded"))

	// Buffer some local edits, then unlink.
	require.Equal(t, 0, fs.Truncate(ctx, "/tmp.txt", 3))
	require.Equal(t, 0, fs.Unlink(ctx, "/tmp.txt"))

	assert.Empty(t, fs.DirtyKeys())
	_, rc := fs.GetAttr(ctx, "/tmp.txt")
	assert.Equal(t, -bfserrors.ENOENT, rc)

	// A later flush of the unlinked path must not resurrect it.
	require.Equal(t, 0, fs.Flush(ctx, "/tmp.txt"))
	assert.Equal(t, 0, store.Calls("write"))
}

func TestReadOnlyMountRejectsMutations(t *testing.T) {
	fs, store := newTestFS(t, true)
	ctx := context.Background()
	store.Seed(testBucket, "file.txt", []byte("content"))

	assert.Equal(t, -bfserrors.EACCES, fs.Create(ctx, "/new.txt", 0644))
	assert.Equal(t, -bfserrors.EACCES, fs.Write(ctx, "/file.txt", []byte("x"), 0))
	assert.Equal(t, -bfserrors.EACCES, fs.Truncate(ctx, "/file.txt", 0))
	assert.Equal(t, -bfserrors.EACCES, fs.Unlink(ctx, "/file.txt"))
	assert.Equal(t, -bfserrors.EACCES, fs.Open(ctx, "/file.txt", os.O_WRONLY))
	assert.Equal(t, -bfserrors.EACCES, fs.Open(ctx, "/file.txt", os.O_RDWR))

	// Reads still work.
	assert.Equal(t, 0, fs.Open(ctx, "/file.txt", os.O_RDONLY))
	buf := make([]byte, 16)
	n := fs.Read(ctx, "/file.txt", buf, 0)
	require.Equal(t, 7, n)
	assert.Equal(t, "content", string(buf[:n]))
}

func TestDirtyKeys(t *testing.T) {
	fs, _ := newTestFS(t, false)
	ctx := context.Background()

	require.Equal(t, 0, fs.Create(ctx, "/b.txt", 0644))
	require.Equal(t, 1, fs.Write(ctx, "/b.txt", []byte("b"), 0))
	require.Equal(t, 0, fs.Create(ctx, "/a.txt", 0644))
	require.Equal(t, 1, fs.Write(ctx, "/a.txt", []byte("a"), 0))

	assert.Equal(t, []string{"a.txt", "b.txt"}, fs.DirtyKeys())

	require.Equal(t, 0, fs.Flush(ctx, "/a.txt"))
	assert.Equal(t, []string{"b.txt"}, fs.DirtyKeys())
}

func TestStatCacheDisabled(t *testing.T) {
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs := New(Options{
		Bucket: testBucket,
		Store:  store,
		Reader: reader.New(reader.Config{}, store, testBucket, nil, logger),
		Logger: logger,
	})
	store.Seed(testBucket, "file.txt", []byte("content"))
	ctx := context.Background()

	st, rc := fs.GetAttr(ctx, "/file.txt")
	require.Equal(t, 0, rc)
	assert.EqualValues(t, 7, st.Size)
	heads := store.Calls("get_metadata")

	// Without a stat cache every stat goes remote.
	_, rc = fs.GetAttr(ctx, "/file.txt")
	require.Equal(t, 0, rc)
	assert.Greater(t, store.Calls("get_metadata"), heads)
}
