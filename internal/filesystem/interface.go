// Package filesystem implements the translation engine between a
// hierarchical file tree and a flat object-store namespace. It owns the
// stat cache, the write buffers and the content reader, and exposes the
// operation set that mount drivers (FUSE on Linux and macOS, cgofuse
// elsewhere) call into. Drivers hold one Operations instance and never
// touch the underlying structures directly.
package filesystem

import (
	"context"

	"github.com/bucketfs/bucketfs/pkg/types"
)

// Operations is the driver-facing operation set. Every method returns a
// zero-or-negative status: 0 on success, a negative errno on failure.
// Read and Write return the non-negative byte count instead of 0.
//
// Implementations must be safe for concurrent use; mount drivers invoke
// operations from multiple worker threads, including overlapping calls
// on the same path.
type Operations interface {
	// GetAttr returns metadata for path. The stat is nil when the
	// status is non-zero.
	GetAttr(ctx context.Context, path string) (*types.Stat, int)

	// ReadDir returns the entries of the directory at path, always
	// including "." and "..".
	ReadDir(ctx context.Context, path string) ([]DirEntry, int)

	// Open validates that path can be opened with the given flags.
	// Opening a missing path for writing succeeds; Create follows.
	Open(ctx context.Context, path string, flags int) int

	// Read fills buf from the file at path starting at offset and
	// returns the byte count. Reading at or past the end returns 0.
	Read(ctx context.Context, path string, buf []byte, offset int64) int

	// Create starts a new empty file at path. The mode is advisory.
	Create(ctx context.Context, path string, mode uint32) int

	// Write stores data at offset in the file's write buffer and
	// returns the byte count. Nothing reaches the store until Flush
	// or Release.
	Write(ctx context.Context, path string, data []byte, offset int64) int

	// Truncate resizes the file at path to size, zero-filling growth.
	Truncate(ctx context.Context, path string, size int64) int

	// Flush uploads buffered writes for path, if any.
	Flush(ctx context.Context, path string) int

	// Release is called on last close and behaves like Flush.
	Release(ctx context.Context, path string) int

	// Unlink deletes the file at path from the store and drops all
	// local state for it.
	Unlink(ctx context.Context, path string) int
}

// DirEntry is one name within a directory listing.
type DirEntry struct {
	Name string
	Mode uint32
}
