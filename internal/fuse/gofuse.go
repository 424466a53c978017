//go:build !cgofuse

package fuse

import (
	"context"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bucketfs/bucketfs/internal/filesystem"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// adapter bridges the operation set to the go-fuse node API. Nodes are
// thin: they carry only a path and forward every request.
type adapter struct {
	ops filesystem.Operations
}

func (a *adapter) root() fs.InodeEmbedder {
	return &dirNode{ops: a.ops, path: "/"}
}

// errnoOf converts an operation status into a go-fuse errno.
func errnoOf(rc int) syscall.Errno {
	if rc < 0 {
		return syscall.Errno(-rc)
	}
	return 0
}

func fillAttr(out *fuse.Attr, st *types.Stat) {
	out.Mode = st.Mode
	out.Nlink = st.Nlink
	out.Size = clampToUint64(st.Size)
	out.Owner = fuse.Owner{Uid: st.Uid, Gid: st.Gid}

	mtime := st.Mtime
	out.SetTimes(&mtime, &mtime, &mtime)
}

func clampToUint64(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// dirNode is one directory level of the tree.
type dirNode struct {
	fs.Inode
	ops  filesystem.Operations
	path string
}

var (
	_ fs.NodeGetattrer = (*dirNode)(nil)
	_ fs.NodeLookuper  = (*dirNode)(nil)
	_ fs.NodeReaddirer = (*dirNode)(nil)
	_ fs.NodeCreater   = (*dirNode)(nil)
	_ fs.NodeUnlinker  = (*dirNode)(nil)
)

func (n *dirNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, rc := n.ops.GetAttr(ctx, n.path)
	if rc != 0 {
		return syscall.Errno(-rc)
	}
	fillAttr(&out.Attr, st)
	return 0
}

func (n *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := path.Join(n.path, name)

	st, rc := n.ops.GetAttr(ctx, childPath)
	if rc != 0 {
		return nil, syscall.Errno(-rc)
	}
	fillAttr(&out.Attr, st)

	if st.IsDir() {
		child := &dirNode{ops: n.ops, path: childPath}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
	}
	child := &fileNode{ops: n.ops, path: childPath}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG}), 0
}

func (n *dirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, rc := n.ops.ReadDir(ctx, n.path)
	if rc != 0 {
		return nil, syscall.Errno(-rc)
	}

	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, fuse.DirEntry{Name: e.Name, Mode: e.Mode})
	}
	return fs.NewListDirStream(out), 0
}

func (n *dirNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	childPath := path.Join(n.path, name)

	if rc := n.ops.Create(ctx, childPath, mode); rc != 0 {
		return nil, nil, 0, syscall.Errno(-rc)
	}
	st, rc := n.ops.GetAttr(ctx, childPath)
	if rc != 0 {
		return nil, nil, 0, syscall.Errno(-rc)
	}
	fillAttr(&out.Attr, st)

	child := &fileNode{ops: n.ops, path: childPath}
	inode := n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG})
	return inode, &fileHandle{ops: n.ops, path: childPath}, 0, 0
}

func (n *dirNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.ops.Unlink(ctx, path.Join(n.path, name)))
}

// fileNode is a regular file.
type fileNode struct {
	fs.Inode
	ops  filesystem.Operations
	path string
}

var (
	_ fs.NodeGetattrer = (*fileNode)(nil)
	_ fs.NodeSetattrer = (*fileNode)(nil)
	_ fs.NodeOpener    = (*fileNode)(nil)
)

func (n *fileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, rc := n.ops.GetAttr(ctx, n.path)
	if rc != 0 {
		return syscall.Errno(-rc)
	}
	fillAttr(&out.Attr, st)
	return 0
}

// Setattr handles truncation. Mode, ownership, and timestamp changes
// have no stored representation; they succeed and report the current
// attributes.
func (n *fileNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if rc := n.ops.Truncate(ctx, n.path, int64(size)); rc != 0 {
			return syscall.Errno(-rc)
		}
	}

	st, rc := n.ops.GetAttr(ctx, n.path)
	if rc != 0 {
		return syscall.Errno(-rc)
	}
	fillAttr(&out.Attr, st)
	return 0
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if rc := n.ops.Open(ctx, n.path, int(flags)); rc != 0 {
		return nil, 0, syscall.Errno(-rc)
	}
	return &fileHandle{ops: n.ops, path: n.path}, 0, 0
}

// fileHandle serves I/O on one opened file.
type fileHandle struct {
	ops  filesystem.Operations
	path string
}

var (
	_ fs.FileReader   = (*fileHandle)(nil)
	_ fs.FileWriter   = (*fileHandle)(nil)
	_ fs.FileFlusher  = (*fileHandle)(nil)
	_ fs.FileReleaser = (*fileHandle)(nil)
)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n := h.ops.Read(ctx, h.path, dest, off)
	if n < 0 {
		return nil, syscall.Errno(-n)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n := h.ops.Write(ctx, h.path, data, off)
	if n < 0 {
		return 0, syscall.Errno(-n)
	}
	return uint32(n), 0
}

func (h *fileHandle) Flush(ctx context.Context) syscall.Errno {
	return errnoOf(h.ops.Flush(ctx, h.path))
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	return errnoOf(h.ops.Release(ctx, h.path))
}
