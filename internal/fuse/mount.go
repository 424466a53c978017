//go:build !cgofuse

package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bucketfs/bucketfs/internal/filesystem"
)

// NewDriver returns the native go-fuse driver.
func NewDriver(ops filesystem.Operations, opts Options, logger *slog.Logger) Driver {
	return NewManager(ops, opts, logger)
}

// Manager runs a go-fuse mount.
type Manager struct {
	adapter *adapter
	opts    Options
	logger  *slog.Logger

	mountsFile string

	mu      sync.Mutex
	server  *fuse.Server
	mounted bool
}

// NewManager creates a mount manager over the given operation set.
func NewManager(ops filesystem.Operations, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		adapter:    &adapter{ops: ops},
		opts:       opts,
		logger:     logger.With("component", "mount"),
		mountsFile: procMounts,
	}
}

// Mount attaches the filesystem. It returns once the kernel connection
// is established; serving happens on go-fuse's own goroutines.
func (m *Manager) Mount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mounted {
		return fmt.Errorf("already mounted at %s", m.opts.MountPoint)
	}
	if err := m.validateMountPoint(); err != nil {
		return fmt.Errorf("invalid mount point: %w", err)
	}

	server, err := fs.Mount(m.opts.MountPoint, m.adapter.root(), m.buildFUSEOptions())
	if err != nil {
		return fmt.Errorf("mount %s: %w", m.opts.MountPoint, err)
	}

	m.server = server
	m.mounted = true
	m.logger.Info("mounted", "mount_point", m.opts.MountPoint, "read_only", m.opts.ReadOnly)
	return nil
}

// Unmount detaches the filesystem, falling back to a lazy and then a
// forced unmount when the kernel refuses.
func (m *Manager) Unmount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mounted || m.server == nil {
		return fmt.Errorf("not mounted")
	}

	if err := m.server.Unmount(); err != nil {
		m.logger.Warn("unmount failed, forcing", "error", err)
		if forceErr := m.forceUnmount(); forceErr != nil {
			return fmt.Errorf("unmount %s: %w (force failed: %v)", m.opts.MountPoint, err, forceErr)
		}
	}

	m.mounted = false
	m.server = nil
	m.logger.Info("unmounted", "mount_point", m.opts.MountPoint)
	return nil
}

// IsMounted implements Driver.
func (m *Manager) IsMounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// Wait blocks until the kernel connection closes, whether through
// Unmount or an external fusermount -u.
func (m *Manager) Wait() {
	m.mu.Lock()
	server := m.server
	m.mu.Unlock()

	if server != nil {
		server.Wait()
	}
}

func (m *Manager) validateMountPoint() error {
	if m.opts.MountPoint == "" {
		return fmt.Errorf("mount point is empty")
	}

	info, err := os.Stat(m.opts.MountPoint)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("mount point does not exist: %s", m.opts.MountPoint)
		}
		return fmt.Errorf("cannot access mount point: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mount point is not a directory: %s", m.opts.MountPoint)
	}

	if entries, err := os.ReadDir(m.opts.MountPoint); err == nil && len(entries) > 0 {
		m.logger.Warn("mount point is not empty", "mount_point", m.opts.MountPoint)
	}

	if data, err := os.ReadFile(m.mountsFile); err == nil {
		if fsType, mounted := mountedFSType(string(data), m.opts.MountPoint); mounted {
			return fmt.Errorf("mount point %s already carries a %s mount", m.opts.MountPoint, fsType)
		}
	}

	return nil
}

func (m *Manager) buildFUSEOptions() *fs.Options {
	attrTimeout := m.opts.AttrTimeout
	entryTimeout := m.opts.EntryTimeout

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:       m.opts.FSName,
			FsName:     m.opts.FSName,
			AllowOther: m.opts.AllowOther,
			Debug:      m.opts.Debug,
			MaxWrite:   m.opts.MaxWrite,
		},
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,

		// Permission checks stay with the engine, not the kernel.
		NullPermissions: true,
	}

	if m.opts.ReadOnly {
		opts.Options = append(opts.Options, "ro")
	}
	if !m.opts.AsyncRead {
		opts.Options = append(opts.Options, "sync_read")
	}
	opts.Options = append(opts.Options, m.opts.ExtraOptions...)

	return opts
}

func (m *Manager) forceUnmount() error {
	// Lazy detach first (MNT_DETACH), then force (MNT_FORCE).
	if err := syscall.Unmount(m.opts.MountPoint, 2); err == nil {
		return nil
	}
	return syscall.Unmount(m.opts.MountPoint, 1)
}
