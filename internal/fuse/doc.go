/*
Package fuse mounts the filesystem engine into the kernel.

The package contains no filesystem semantics of its own. Every kernel
request is translated into one call on filesystem.Operations and the
returned status into the corresponding errno; the engine decides
everything else.

# Architecture

	┌─────────────────────────────────────────────┐
	│             User Applications               │
	│          (ls, cat, cp, vim, tar)            │
	└─────────────────────────────────────────────┘
	                      │ POSIX system calls
	┌─────────────────────────────────────────────┐
	│              Kernel VFS / FUSE              │
	└─────────────────────────────────────────────┘
	                      │ FUSE protocol
	┌─────────────────────────────────────────────┐
	│              This package                   │
	│   ┌───────────────┐   ┌─────────────────┐   │
	│   │ go-fuse       │   │ cgofuse         │   │
	│   │ (default)     │   │ (-tags cgofuse) │   │
	│   └───────────────┘   └─────────────────┘   │
	│              │ Operations calls             │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│          filesystem.Operations              │
	└─────────────────────────────────────────────┘

# Drivers

Two interchangeable drivers implement the Driver interface, selected at
build time:

Default build: github.com/hanwen/go-fuse/v2, the native Linux path.

cgofuse build (go build -tags cgofuse): github.com/winfsp/cgofuse, for
macOS and Windows hosts where go-fuse is unavailable.

NewDriver returns whichever driver the build carries:

	driver := fuse.NewDriver(ops, fuse.Options{
		MountPoint: "/mnt/data",
		FSName:     "bucketfs",
		MaxWrite:   1 << 20,
	}, logger)

	if err := driver.Mount(ctx); err != nil {
		return err
	}
	defer driver.Unmount()
	driver.Wait()

# Kernel tuning

Tuner optionally raises the mount's read-ahead and background request
budgets through /sys after the mount appears. It runs detached from the
mount path: it shares no state with the driver, and every failure is
logged and skipped.

Watcher polls the mounts table and reports when the mount disappears
underneath the process, for example after a manual fusermount -u.
*/
package fuse
