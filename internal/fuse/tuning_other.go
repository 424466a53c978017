//go:build !linux

package fuse

import (
	"context"
	"log/slog"
)

// Tuner is inert off Linux: the read-ahead and FUSE connection knobs it
// writes only exist in the Linux sysfs tree.
type Tuner struct {
	opts   TunerOptions
	logger *slog.Logger
}

// NewTuner creates a tuner that does nothing on this platform.
func NewTuner(opts TunerOptions, logger *slog.Logger) *Tuner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tuner{opts: opts, logger: logger.With("component", "tuner")}
}

// Run logs that tuning is unavailable and returns.
func (t *Tuner) Run(ctx context.Context) {
	t.logger.Info("kernel tuning not supported on this platform",
		"mount_point", t.opts.MountPoint)
}
