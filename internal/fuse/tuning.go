//go:build linux

package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Tuner raises the kernel's FUSE request and read-ahead budgets for one
// mount. It runs fully detached from the mount path: it holds no locks
// shared with the driver or the engine, and every failure is logged and
// skipped. A mount that was never tuned is still a working mount.
type Tuner struct {
	opts   TunerOptions
	logger *slog.Logger

	// Overridable for tests.
	mountsFile string
	bdiDir     string
	connDir    string
	pollEvery  time.Duration
	cmdTimeout time.Duration
	statDev    func(path string) (uint64, error)
	runShell   func(ctx context.Context, command string) error
}

// NewTuner creates a tuner for the mount described by opts.
func NewTuner(opts TunerOptions, logger *slog.Logger) *Tuner {
	if opts.MountWait <= 0 {
		opts.MountWait = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Tuner{
		opts:       opts,
		logger:     logger.With("component", "tuner"),
		mountsFile: procMounts,
		bdiDir:     "/sys/class/bdi",
		connDir:    "/sys/fs/fuse/connections",
		pollEvery:  100 * time.Millisecond,
		cmdTimeout: 2 * time.Second,
		statDev: func(path string) (uint64, error) {
			var st syscall.Stat_t
			if err := syscall.Stat(path, &st); err != nil {
				return 0, err
			}
			return st.Dev, nil
		},
		runShell: func(ctx context.Context, command string) error {
			return exec.CommandContext(ctx, "sh", "-c", command).Run()
		},
	}
}

// Run waits for the mount to appear in the mounts table, resolves its
// device numbers, and writes the kernel knobs. It is meant to run on
// its own goroutine right after Mount.
func (t *Tuner) Run(ctx context.Context) {
	if !t.waitForMount(ctx) {
		t.logger.Warn("mount never appeared, skipping kernel tuning",
			"mount_point", t.opts.MountPoint, "waited", t.opts.MountWait)
		return
	}

	dev, err := t.statDev(t.opts.MountPoint)
	if err != nil {
		t.logger.Warn("cannot resolve mount device, skipping kernel tuning",
			"mount_point", t.opts.MountPoint, "error", err)
		return
	}
	major, minor := splitDev(dev)

	if t.opts.ReadAheadKB > 0 {
		knob := filepath.Join(t.bdiDir, fmt.Sprintf("%d:%d", major, minor), "read_ahead_kb")
		t.writeKnob(ctx, knob, t.opts.ReadAheadKB)
	}
	if t.opts.MaxBackground > 0 {
		knob := filepath.Join(t.connDir, fmt.Sprintf("%d", minor), "max_background")
		t.writeKnob(ctx, knob, t.opts.MaxBackground)
	}
	if t.opts.CongestionThreshold > 0 {
		knob := filepath.Join(t.connDir, fmt.Sprintf("%d", minor), "congestion_threshold")
		t.writeKnob(ctx, knob, t.opts.CongestionThreshold)
	}
}

func (t *Tuner) waitForMount(ctx context.Context) bool {
	deadline := time.Now().Add(t.opts.MountWait)
	for {
		if t.mountPresent() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(t.pollEvery):
		}
	}
}

func (t *Tuner) mountPresent() bool {
	data, err := os.ReadFile(t.mountsFile)
	if err != nil {
		return false
	}
	fsType, mounted := mountedFSType(string(data), t.opts.MountPoint)
	return mounted && strings.Contains(fsType, "fuse")
}

// writeKnob writes value into the sysfs file at path. The write goes
// through a subprocess with a timeout so a wedged sysfs entry cannot
// hang the process.
func (t *Tuner) writeKnob(ctx context.Context, path string, value int) {
	if _, err := os.Stat(path); err != nil {
		t.logger.Warn("kernel knob not available", "path", path, "error", err)
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, t.cmdTimeout)
	defer cancel()

	command := fmt.Sprintf("echo %d > %s", value, path)
	if err := t.runShell(cmdCtx, command); err != nil {
		t.logger.Warn("kernel knob write failed", "path", path, "value", value, "error", err)
		return
	}
	t.logger.Info("kernel knob set", "path", path, "value", value)
}

// splitDev unpacks a stat device number into major and minor parts,
// following the glibc dev_t encoding. FUSE mounts sit on anonymous
// devices with major 0; the minor names both the bdi ("0:minor") and
// the /sys/fs/fuse/connections entry.
func splitDev(dev uint64) (major, minor uint64) {
	major = (dev >> 8) & 0xfff
	minor = (dev & 0xff) | ((dev >> 12) & 0xfff00)
	return major, minor
}
