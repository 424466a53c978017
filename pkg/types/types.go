package types

import (
	"time"
)

// File type bits used in Stat.Mode. The values follow the POSIX S_IFMT
// encoding so FUSE adapters can hand them to the kernel unchanged.
const (
	ModeDir     uint32 = 0o040000
	ModeRegular uint32 = 0o100000

	modeTypeMask uint32 = 0o170000
)

// ObjectInfo describes a single stored object as reported by the store.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag,omitempty"`
}

// ListResult is one page of a prefix/delimiter listing. Objects are the
// entries directly under the prefix; Prefixes are the collapsed common
// prefixes standing in for one directory level each. Prefixes keep the
// trailing delimiter, matching the S3 CommonPrefixes convention.
type ListResult struct {
	Objects  []ObjectInfo `json:"objects"`
	Prefixes []string     `json:"prefixes,omitempty"`
}

// Stat is the POSIX-style metadata the filesystem façade reports for a
// path. Mode carries both the file type bits and the permission bits.
type Stat struct {
	Mode  uint32    `json:"mode"`
	Size  int64     `json:"size"`
	Mtime time.Time `json:"mtime"`
	Uid   uint32    `json:"uid"`
	Gid   uint32    `json:"gid"`
	Nlink uint32    `json:"nlink"`
}

// IsDir reports whether the stat describes a directory.
func (s Stat) IsDir() bool {
	return s.Mode&modeTypeMask == ModeDir
}
