package fuse

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const procMounts = "/proc/mounts"

// Options configures a mount. The zero value is not usable; callers
// fill it from their configuration.
type Options struct {
	MountPoint string
	ReadOnly   bool
	AllowOther bool
	Debug      bool

	// FSName is the source shown in the mounts table.
	FSName string

	// MaxWrite caps the size of a single kernel write request.
	MaxWrite int

	// AttrTimeout and EntryTimeout control how long the kernel may
	// cache attributes and name lookups before asking again.
	AttrTimeout  time.Duration
	EntryTimeout time.Duration

	// AsyncRead lets the kernel issue concurrent read requests. Off,
	// the mount is forced into synchronous reads.
	AsyncRead bool

	// ExtraOptions are appended verbatim to the mount options.
	ExtraOptions []string
}

// Driver is a mounted FUSE filesystem. Both the go-fuse and the cgofuse
// implementations satisfy it; NewDriver picks the one the build
// carries.
type Driver interface {
	// Mount attaches the filesystem at Options.MountPoint and returns
	// once the mount is live.
	Mount(ctx context.Context) error

	// Unmount detaches the filesystem.
	Unmount() error

	// IsMounted reports whether the driver believes it is mounted.
	IsMounted() bool

	// Wait blocks until the kernel connection closes.
	Wait()
}

// TunerOptions configures the post-mount kernel tuner. Zero-valued
// knobs are left at their kernel defaults.
type TunerOptions struct {
	MountPoint string

	// ReadAheadKB raises the mount's block-device read-ahead window.
	ReadAheadKB int

	// MaxBackground raises the cap on queued background FUSE requests.
	MaxBackground int

	// CongestionThreshold sets where the kernel starts throttling
	// writers. Usually around three quarters of MaxBackground.
	CongestionThreshold int

	// MountWait bounds how long the tuner polls for the mount to
	// appear before giving up. Defaults to five seconds.
	MountWait time.Duration
}

// mountedFSType returns the filesystem type the mounts table lists at
// mountPoint, and whether any entry matched.
func mountedFSType(table, mountPoint string) (string, bool) {
	target := filepath.Clean(mountPoint)
	for _, line := range strings.Split(table, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[1] == target {
			return fields[2], true
		}
	}
	return "", false
}

// Watcher periodically checks the mounts table and reports when the
// mount vanishes underneath the process, such as after a manual
// fusermount -u. On hosts without a mounts table it stays silent.
type Watcher struct {
	mountPoint string
	mountsFile string
	interval   time.Duration
	onLost     func()
	logger     *slog.Logger

	lost    sync.Once
	stopCh  chan struct{}
	stopped chan struct{}
}

// NewWatcher creates a watcher for mountPoint. onLost runs at most once,
// from the watcher goroutine, when the mount disappears.
func NewWatcher(mountPoint string, interval time.Duration, onLost func(), logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		mountPoint: mountPoint,
		mountsFile: procMounts,
		interval:   interval,
		onLost:     onLost,
		logger:     logger.With("component", "watcher"),
		stopCh:     make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start begins watching in the background.
func (w *Watcher) Start() {
	go w.run()
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.stopped
}

func (w *Watcher) run() {
	defer close(w.stopped)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	data, err := os.ReadFile(w.mountsFile)
	if err != nil {
		return
	}
	fsType, mounted := mountedFSType(string(data), w.mountPoint)
	if mounted && strings.Contains(fsType, "fuse") {
		return
	}
	w.lost.Do(func() {
		w.logger.Warn("mount disappeared", "mount_point", w.mountPoint)
		if w.onLost != nil {
			w.onLost()
		}
	})
}
