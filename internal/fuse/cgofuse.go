//go:build cgofuse

package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/bucketfs/bucketfs/internal/filesystem"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// NewDriver returns the portable cgofuse driver.
func NewDriver(ops filesystem.Operations, opts Options, logger *slog.Logger) Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &portableDriver{
		fsys:   &portableFS{FileSystemBase: fuse.FileSystemBase{}, ops: ops},
		opts:   opts,
		logger: logger.With("component", "mount"),
	}
}

// portableFS adapts the operation set to the cgofuse host API. The
// operation statuses pass through unchanged: cgofuse's errno constants
// use the same POSIX numbering the engine returns.
type portableFS struct {
	fuse.FileSystemBase
	ops filesystem.Operations
}

func (p *portableFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	st, rc := p.ops.GetAttr(context.Background(), path)
	if rc != 0 {
		return rc
	}
	fillPortableStat(stat, st)
	return 0
}

func (p *portableFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	entries, rc := p.ops.ReadDir(context.Background(), path)
	if rc != 0 {
		return rc
	}
	for _, e := range entries {
		if !fill(e.Name, &fuse.Stat_t{Mode: e.Mode}, 0) {
			break
		}
	}
	return 0
}

func (p *portableFS) Open(path string, flags int) (int, uint64) {
	if rc := p.ops.Open(context.Background(), path, flags); rc != 0 {
		return rc, ^uint64(0)
	}
	return 0, 0
}

func (p *portableFS) Create(path string, flags int, mode uint32) (int, uint64) {
	if rc := p.ops.Create(context.Background(), path, mode); rc != 0 {
		return rc, ^uint64(0)
	}
	return 0, 0
}

func (p *portableFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	return p.ops.Read(context.Background(), path, buff, ofst)
}

func (p *portableFS) Write(path string, buff []byte, ofst int64, fh uint64) int {
	return p.ops.Write(context.Background(), path, buff, ofst)
}

func (p *portableFS) Truncate(path string, size int64, fh uint64) int {
	return p.ops.Truncate(context.Background(), path, size)
}

func (p *portableFS) Flush(path string, fh uint64) int {
	return p.ops.Flush(context.Background(), path)
}

func (p *portableFS) Release(path string, fh uint64) int {
	return p.ops.Release(context.Background(), path)
}

func (p *portableFS) Unlink(path string) int {
	return p.ops.Unlink(context.Background(), path)
}

func fillPortableStat(stat *fuse.Stat_t, st *types.Stat) {
	stat.Mode = st.Mode
	stat.Nlink = st.Nlink
	stat.Size = st.Size
	stat.Uid = st.Uid
	stat.Gid = st.Gid
	stat.Mtim = fuse.Timespec{
		Sec:  st.Mtime.Unix(),
		Nsec: int64(st.Mtime.Nanosecond()),
	}
	stat.Atim = stat.Mtim
	stat.Ctim = stat.Mtim
}

// portableDriver runs a cgofuse mount.
type portableDriver struct {
	fsys   *portableFS
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	host    *fuse.FileSystemHost
	mounted bool
	done    chan struct{}
}

// Mount attaches the filesystem. cgofuse serves from its own thread;
// failures after attach surface through the host exiting, observable
// via Wait.
func (d *portableDriver) Mount(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mounted {
		return fmt.Errorf("already mounted at %s", d.opts.MountPoint)
	}

	d.host = fuse.NewFileSystemHost(d.fsys)
	d.done = make(chan struct{})

	args := d.buildMountArgs()
	go func() {
		defer close(d.done)
		if ok := d.host.Mount(d.opts.MountPoint, args); !ok {
			d.logger.Error("mount exited with failure", "mount_point", d.opts.MountPoint)
		}
		d.mu.Lock()
		d.mounted = false
		d.mu.Unlock()
	}()

	d.mounted = true
	d.logger.Info("mounted", "mount_point", d.opts.MountPoint, "read_only", d.opts.ReadOnly)
	return nil
}

func (d *portableDriver) buildMountArgs() []string {
	var args []string
	if d.opts.FSName != "" {
		args = append(args, "-o", "fsname="+d.opts.FSName)
	}
	if d.opts.ReadOnly {
		args = append(args, "-o", "ro")
	}
	if d.opts.AllowOther {
		args = append(args, "-o", "allow_other")
	}
	if d.opts.Debug {
		args = append(args, "-d")
	}
	for _, opt := range d.opts.ExtraOptions {
		args = append(args, "-o", opt)
	}
	return args
}

// Unmount detaches the filesystem.
func (d *portableDriver) Unmount() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.mounted || d.host == nil {
		return fmt.Errorf("not mounted")
	}
	if ok := d.host.Unmount(); !ok {
		return fmt.Errorf("unmount %s failed", d.opts.MountPoint)
	}

	d.mounted = false
	d.logger.Info("unmounted", "mount_point", d.opts.MountPoint)
	return nil
}

// IsMounted implements Driver.
func (d *portableDriver) IsMounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}

// Wait blocks until the host loop exits.
func (d *portableDriver) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()

	if done != nil {
		<-done
	}
}
