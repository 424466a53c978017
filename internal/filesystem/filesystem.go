package filesystem

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bucketfs/bucketfs/internal/buffer"
	"github.com/bucketfs/bucketfs/internal/cache"
	"github.com/bucketfs/bucketfs/internal/metrics"
	"github.com/bucketfs/bucketfs/internal/reader"
	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
	"github.com/bucketfs/bucketfs/pkg/utils"
)

// accModeMask extracts the access mode from open flags (O_ACCMODE).
// The three modes have the same values on every platform Go supports.
const accModeMask = 0x3

// Options configures a FileSystem.
type Options struct {
	// Bucket is the store bucket every key resolves into.
	Bucket string

	// Store is the remote object store client.
	Store types.StoreClient

	// Reader serves file content reads. Constructed by reader.New from
	// the same store.
	Reader reader.Reader

	// StatCache caches per-path metadata. Nil disables metadata
	// caching entirely; every lookup then probes the store.
	StatCache *cache.StatCache

	// Collector records operation metrics. Nil disables collection.
	Collector *metrics.Collector

	Logger   *slog.Logger
	ReadOnly bool
}

// FileSystem answers the driver-facing operation set over one bucket.
// All mutating state lives in the stat cache, the write buffers and the
// reader's content cache; each is internally locked, and operations
// never require atomicity across them. A stale answer from one
// structure at worst costs a redundant store round trip.
type FileSystem struct {
	bucket    string
	store     types.StoreClient
	reader    reader.Reader
	statCache *cache.StatCache
	buffers   *buffer.Manager
	tracker   *readTracker
	collector *metrics.Collector
	logger    *slog.Logger
	readOnly  bool
	uid       uint32
	gid       uint32
}

var _ Operations = (*FileSystem)(nil)

// New creates a FileSystem over the given store and reader.
func New(opts Options) *FileSystem {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	uid, gid := currentIDs()
	fs := &FileSystem{
		bucket:    opts.Bucket,
		store:     opts.Store,
		reader:    opts.Reader,
		statCache: opts.StatCache,
		buffers:   buffer.NewManager(),
		tracker:   newReadTracker(),
		collector: opts.Collector,
		logger:    logger.With("component", "filesystem"),
		readOnly:  opts.ReadOnly,
		uid:       uid,
		gid:       gid,
	}

	opts.Collector.RegisterGaugeFunc("write_buffers",
		"Number of files with buffered writes.",
		func() float64 { return float64(fs.buffers.Stats().Buffers) })
	opts.Collector.RegisterGaugeFunc("write_buffer_bytes",
		"Total bytes held in write buffers.",
		func() float64 { return float64(fs.buffers.Stats().TotalBytes) })

	return fs
}

// GetAttr implements Operations. The write buffer is consulted first,
// then the stat cache, then the store. A key that names both an object
// and a prefix is reported as a directory.
func (f *FileSystem) GetAttr(ctx context.Context, path string) (*types.Stat, int) {
	start := time.Now()
	key := utils.PathToKey(path)

	// The mount root never exists remotely.
	if key == "" {
		return f.dirStat(), f.complete("getattr", start, 0)
	}

	if size, ok := f.buffers.Size(key); ok {
		return f.fileStat(size, time.Now()), f.complete("getattr", start, 0)
	}

	if f.statCache != nil {
		if entry, ok := f.statCache.GetStat(key); ok {
			return f.statFromEntry(entry), f.complete("getattr", start, 0)
		}
	}

	st, rc := f.fetchStat(ctx, key)
	return st, f.complete("getattr", start, rc)
}

// fetchStat probes the store for key and populates the stat cache with
// whatever it learns.
func (f *FileSystem) fetchStat(ctx context.Context, key string) (*types.Stat, int) {
	info, err := f.store.GetMetadata(ctx, f.bucket, key)
	if err != nil && !bfserrors.IsNotFound(err) {
		f.logger.Error("metadata fetch failed", "key", key, "error", err)
		return nil, -bfserrors.EIO
	}

	isDir, rc := f.probeDirectory(ctx, key)
	if rc != 0 {
		return nil, rc
	}
	if isDir {
		if f.statCache != nil {
			f.statCache.InsertDirectory(key)
		}
		return f.dirStat(), 0
	}

	if info == nil {
		return nil, -bfserrors.ENOENT
	}
	if f.statCache != nil {
		f.statCache.InsertFile(key, info.Size, info.LastModified)
	}
	return f.fileStat(info.Size, info.LastModified), 0
}

// ReadDir implements Operations. One prefix/delimiter listing yields the
// immediate children; every discovered entry is merged into the stat
// cache so the getattr calls that follow a listing stay local.
func (f *FileSystem) ReadDir(ctx context.Context, path string) ([]DirEntry, int) {
	start := time.Now()
	key := utils.PathToKey(path)
	prefix := utils.DirPrefix(key)

	entries := []DirEntry{
		{Name: ".", Mode: types.ModeDir | 0755},
		{Name: "..", Mode: types.ModeDir | 0755},
	}
	seen := map[string]bool{".": true, "..": true}

	result, err := f.store.List(ctx, f.bucket, prefix, "/", 0)
	if err != nil {
		f.logger.Error("directory listing failed", "path", path, "error", err)
		return nil, f.complete("readdir", start, -bfserrors.EIO)
	}

	for _, obj := range result.Objects {
		relative := strings.TrimPrefix(obj.Key, prefix)
		// Directory marker objects ("dir/") carry no listable name.
		if relative == "" || strings.HasSuffix(relative, "/") {
			continue
		}

		name, _, nested := strings.Cut(relative, "/")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if nested {
			entries = append(entries, DirEntry{Name: name, Mode: types.ModeDir | 0755})
			if f.statCache != nil {
				f.statCache.InsertDirectory(prefix + name)
			}
		} else {
			entries = append(entries, DirEntry{Name: name, Mode: types.ModeRegular | 0644})
			if f.statCache != nil {
				f.statCache.InsertFile(prefix+name, obj.Size, obj.LastModified)
			}
		}
	}

	for _, p := range result.Prefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(p, prefix), "/")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		entries = append(entries, DirEntry{Name: name, Mode: types.ModeDir | 0755})
		if f.statCache != nil {
			f.statCache.InsertDirectory(prefix + name)
		}
	}

	return entries, f.complete("readdir", start, 0)
}

// Open implements Operations.
func (f *FileSystem) Open(ctx context.Context, path string, flags int) int {
	start := time.Now()
	key := utils.PathToKey(path)

	accMode := flags & accModeMask
	switch accMode {
	case os.O_RDONLY, os.O_WRONLY, os.O_RDWR:
	default:
		return f.complete("open", start, -bfserrors.EINVAL)
	}

	if accMode != os.O_RDONLY && f.readOnly {
		return f.complete("open", start, -bfserrors.EACCES)
	}

	valid, rc := f.isValidPath(ctx, key)
	if rc != 0 {
		return f.complete("open", start, rc)
	}
	if !valid {
		// A missing path is only an error for reading; writers get
		// their file from the Create that follows.
		if accMode == os.O_RDONLY {
			return f.complete("open", start, -bfserrors.ENOENT)
		}
		return f.complete("open", start, 0)
	}

	isDir, rc := f.isDirectory(ctx, key)
	if rc != 0 {
		return f.complete("open", start, rc)
	}
	if isDir {
		return f.complete("open", start, -bfserrors.EISDIR)
	}
	return f.complete("open", start, 0)
}

// Read implements Operations. Buffered writes are the freshest view of
// a file and win over the reader pipeline.
func (f *FileSystem) Read(ctx context.Context, path string, buf []byte, offset int64) int {
	start := time.Now()
	key := utils.PathToKey(path)

	release := f.tracker.Enter(path)
	defer release()
	f.collector.IncInflightReads()
	defer f.collector.DecInflightReads()

	valid, rc := f.isValidPath(ctx, key)
	if rc != 0 {
		return f.complete("read", start, rc)
	}
	if !valid {
		return f.complete("read", start, -bfserrors.ENOENT)
	}

	if n, ok := f.buffers.Read(key, buf, offset); ok {
		f.collector.AddBytesRead(int64(n))
		return f.complete("read", start, n)
	}

	n, err := f.reader.Read(ctx, key, buf, offset)
	if err != nil {
		if bfserrors.IsNotFound(err) {
			return f.complete("read", start, -bfserrors.ENOENT)
		}
		f.logger.Error("read failed", "key", key, "offset", offset, "error", err)
		return f.complete("read", start, -bfserrors.EIO)
	}
	f.collector.AddBytesRead(int64(n))
	return f.complete("read", start, n)
}

// Create implements Operations. The file exists only in the write
// buffer until the first flush.
func (f *FileSystem) Create(ctx context.Context, path string, mode uint32) int {
	start := time.Now()
	if f.readOnly {
		return f.complete("create", start, -bfserrors.EACCES)
	}
	key := utils.PathToKey(path)
	if key == "" {
		return f.complete("create", start, -bfserrors.EISDIR)
	}

	f.buffers.Create(key)
	if f.statCache != nil {
		f.statCache.InsertFile(key, 0, time.Now())
	}
	f.logger.Debug("created", "key", key)
	return f.complete("create", start, 0)
}

// Write implements Operations. Writing to a path with no buffer starts
// one from scratch; existing remote content is not pulled in, matching
// the whole-file write model where open-for-write is followed by either
// a full rewrite or a truncate.
func (f *FileSystem) Write(ctx context.Context, path string, data []byte, offset int64) int {
	start := time.Now()
	if f.readOnly {
		return f.complete("write", start, -bfserrors.EACCES)
	}
	key := utils.PathToKey(path)
	if key == "" {
		return f.complete("write", start, -bfserrors.EISDIR)
	}

	n := f.buffers.Write(key, data, offset)
	if f.statCache != nil {
		if size, ok := f.buffers.Size(key); ok {
			f.statCache.InsertFile(key, size, time.Now())
		}
	}
	f.collector.AddBytesWritten(int64(n))
	return f.complete("write", start, n)
}

// Truncate implements Operations. Truncating a file that exists
// remotely but has no buffer yet pulls the full content first so the
// surviving prefix is preserved.
func (f *FileSystem) Truncate(ctx context.Context, path string, size int64) int {
	start := time.Now()
	if f.readOnly {
		return f.complete("truncate", start, -bfserrors.EACCES)
	}
	key := utils.PathToKey(path)
	if key == "" {
		return f.complete("truncate", start, -bfserrors.EISDIR)
	}

	if !f.buffers.Has(key) {
		valid, rc := f.isValidPath(ctx, key)
		if rc != 0 {
			return f.complete("truncate", start, rc)
		}
		if valid {
			isDir, rc := f.isDirectory(ctx, key)
			if rc != 0 {
				return f.complete("truncate", start, rc)
			}
			if isDir {
				return f.complete("truncate", start, -bfserrors.EISDIR)
			}
			data, err := reader.ReadAll(ctx, f.reader, key)
			if err != nil && !bfserrors.IsNotFound(err) {
				f.logger.Error("truncate seed failed", "key", key, "error", err)
				return f.complete("truncate", start, -bfserrors.EIO)
			}
			f.buffers.Load(key, data)
		} else {
			f.buffers.Create(key)
		}
	}

	f.buffers.Truncate(key, size)
	if f.statCache != nil {
		f.statCache.InsertFile(key, size, time.Now())
	}
	return f.complete("truncate", start, 0)
}

// Flush implements Operations.
func (f *FileSystem) Flush(ctx context.Context, path string) int {
	start := time.Now()
	return f.complete("flush", start, f.syncIfDirty(ctx, utils.PathToKey(path)))
}

// Release implements Operations. The kernel calls it on last close;
// like Flush it uploads pending writes, so data survives programs that
// never fsync.
func (f *FileSystem) Release(ctx context.Context, path string) int {
	start := time.Now()
	return f.complete("release", start, f.syncIfDirty(ctx, utils.PathToKey(path)))
}

// syncIfDirty uploads the buffered content for key when it has
// unflushed writes. On failure the buffer and the dirty flag survive
// untouched, so a later flush retries the identical upload. The buffer
// entry is retired only if no new write landed while the upload was in
// flight.
func (f *FileSystem) syncIfDirty(ctx context.Context, key string) int {
	if !f.buffers.IsDirty(key) {
		return 0
	}
	data, gen, ok := f.buffers.Snapshot(key)
	if !ok {
		return 0
	}

	if err := f.store.Write(ctx, f.bucket, key, data); err != nil {
		f.logger.Error("upload failed", "key", key, "size", len(data), "error", err)
		return -bfserrors.EIO
	}

	f.buffers.CompleteUpload(key, gen)
	f.reader.Invalidate(key)
	if f.statCache != nil {
		f.statCache.InsertFile(key, int64(len(data)), time.Now())
	}
	f.logger.Debug("uploaded", "key", key, "size", len(data))
	return 0
}

// Unlink implements Operations. The remote delete happens first; local
// state is purged only after it succeeds, so a failed delete leaves the
// file fully intact.
func (f *FileSystem) Unlink(ctx context.Context, path string) int {
	start := time.Now()
	if f.readOnly {
		return f.complete("unlink", start, -bfserrors.EACCES)
	}
	key := utils.PathToKey(path)
	if key == "" {
		return f.complete("unlink", start, -bfserrors.EISDIR)
	}

	valid, rc := f.isValidPath(ctx, key)
	if rc != 0 {
		return f.complete("unlink", start, rc)
	}
	if !valid {
		return f.complete("unlink", start, -bfserrors.ENOENT)
	}
	isDir, rc := f.isDirectory(ctx, key)
	if rc != 0 {
		return f.complete("unlink", start, rc)
	}
	if isDir {
		return f.complete("unlink", start, -bfserrors.EISDIR)
	}

	if err := f.store.Delete(ctx, f.bucket, key); err != nil {
		f.logger.Error("delete failed", "key", key, "error", err)
		return f.complete("unlink", start, -bfserrors.EIO)
	}

	f.buffers.Remove(key)
	f.reader.Invalidate(key)
	if f.statCache != nil {
		f.statCache.Remove(key)
	}
	f.logger.Debug("unlinked", "key", key)
	return f.complete("unlink", start, 0)
}

// DirtyKeys returns the keys with unflushed writes, for shutdown
// reporting.
func (f *FileSystem) DirtyKeys() []string {
	return f.buffers.DirtyKeys()
}

// BufferStats reports write buffer usage.
func (f *FileSystem) BufferStats() buffer.Stats {
	return f.buffers.Stats()
}

// isValidPath reports whether key names anything: a buffered file, a
// cached entry, a remote object, or a non-empty remote prefix. Remote
// hits populate the stat cache.
func (f *FileSystem) isValidPath(ctx context.Context, key string) (bool, int) {
	if key == "" {
		return true, 0
	}
	if f.buffers.Has(key) {
		return true, 0
	}
	if f.statCache != nil {
		if _, ok := f.statCache.GetStat(key); ok {
			return true, 0
		}
	}

	info, err := f.store.GetMetadata(ctx, f.bucket, key)
	if err == nil {
		if f.statCache != nil {
			f.statCache.InsertFile(key, info.Size, info.LastModified)
		}
		return true, 0
	}
	if !bfserrors.IsNotFound(err) {
		f.logger.Error("metadata fetch failed", "key", key, "error", err)
		return false, -bfserrors.EIO
	}

	isDir, rc := f.probeDirectory(ctx, key)
	if rc != 0 {
		return false, rc
	}
	if isDir && f.statCache != nil {
		f.statCache.InsertDirectory(key)
	}
	return isDir, 0
}

// isDirectory reports whether key names a directory. A buffered file is
// never a directory; a key cached as a file still probes the store so a
// prefix with the same name wins, mirroring fetchStat.
func (f *FileSystem) isDirectory(ctx context.Context, key string) (bool, int) {
	if key == "" {
		return true, 0
	}
	if f.buffers.Has(key) {
		return false, 0
	}
	if f.statCache != nil && f.statCache.IsDirectory(key) {
		return true, 0
	}
	isDir, rc := f.probeDirectory(ctx, key)
	if rc != 0 {
		return false, rc
	}
	if isDir && f.statCache != nil {
		f.statCache.InsertDirectory(key)
	}
	return isDir, 0
}

// probeDirectory asks the store whether anything lives under key's
// prefix. A single result is enough.
func (f *FileSystem) probeDirectory(ctx context.Context, key string) (bool, int) {
	result, err := f.store.List(ctx, f.bucket, utils.DirPrefix(key), "/", 1)
	if err != nil {
		f.logger.Error("directory probe failed", "key", key, "error", err)
		return false, -bfserrors.EIO
	}
	return len(result.Objects)+len(result.Prefixes) > 0, 0
}

// complete records the operation outcome and passes the status through.
func (f *FileSystem) complete(op string, start time.Time, rc int) int {
	f.collector.RecordOperation(op, rc, time.Since(start))
	return rc
}

func (f *FileSystem) dirStat() *types.Stat {
	return &types.Stat{
		Mode:  types.ModeDir | 0755,
		Nlink: 2,
		Mtime: time.Now(),
		Uid:   f.uid,
		Gid:   f.gid,
	}
}

func (f *FileSystem) fileStat(size int64, mtime time.Time) *types.Stat {
	return &types.Stat{
		Mode:  types.ModeRegular | 0644,
		Nlink: 1,
		Size:  size,
		Mtime: mtime,
		Uid:   f.uid,
		Gid:   f.gid,
	}
}

func (f *FileSystem) statFromEntry(entry cache.StatEntry) *types.Stat {
	if entry.IsDir {
		st := f.dirStat()
		st.Mtime = entry.Mtime
		return st
	}
	return f.fileStat(entry.Size, entry.Mtime)
}

// currentIDs returns the process uid/gid for synthesized stats,
// clamping the -1 reported on platforms without POSIX ids.
func currentIDs() (uint32, uint32) {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 {
		uid = 0
	}
	if gid < 0 {
		gid = 0
	}
	return uint32(uid), uint32(gid)
}
