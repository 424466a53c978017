// bucketfs mounts an object-store bucket as a writable directory tree.
//
// Configuration is layered: built-in defaults, then an optional YAML
// file (--config), then BUCKETFS_* environment variables, then command
// line flags. Later layers win.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bucketfs/bucketfs/internal/cache"
	"github.com/bucketfs/bucketfs/internal/config"
	"github.com/bucketfs/bucketfs/internal/filesystem"
	"github.com/bucketfs/bucketfs/internal/fuse"
	"github.com/bucketfs/bucketfs/internal/metrics"
	"github.com/bucketfs/bucketfs/internal/reader"
	"github.com/bucketfs/bucketfs/internal/storage"
	"github.com/bucketfs/bucketfs/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bucketfs: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.NewDefault()

	var configFile string

	flags := pflag.NewFlagSet("bucketfs", pflag.ContinueOnError)
	flags.StringVarP(&configFile, "config", "c", "", "path to YAML configuration file")
	flags.StringVarP(&cfg.Bucket, "bucket", "b", cfg.Bucket, "bucket to mount")
	flags.StringVarP(&cfg.MountPoint, "mount-point", "m", cfg.MountPoint, "directory to mount at")
	flags.StringVar(&cfg.Store.Driver, "store", cfg.Store.Driver, "store driver (s3, postgres, mongodb, memory)")
	flags.BoolVar(&cfg.ReadOnly, "read-only", cfg.ReadOnly, "mount read-only")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (DEBUG, INFO, WARN, ERROR)")
	flags.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "emit logs as JSON")
	flags.BoolVarP(&cfg.Debug, "debug", "d", cfg.Debug, "enable FUSE debug logging")
	flags.BoolVar(&cfg.StatCache.Enabled, "stat-cache", cfg.StatCache.Enabled, "cache per-path metadata")
	flags.DurationVar(&cfg.StatCache.TTL, "stat-cache-ttl", cfg.StatCache.TTL, "metadata cache TTL (0 never expires)")
	flags.BoolVar(&cfg.ContentCache.Enabled, "content-cache", cfg.ContentCache.Enabled, "cache whole-object content")
	flags.StringVar(&cfg.ContentCache.MaxSize, "content-cache-size", cfg.ContentCache.MaxSize, "content cache byte budget (0 = unbounded)")
	flags.BoolVar(&cfg.Reader.Dummy, "dummy-reader", cfg.Reader.Dummy, "serve reads from configured fixtures instead of the store")
	flags.BoolVar(&cfg.Mount.AllowOther, "allow-other", cfg.Mount.AllowOther, "allow other users to access the mount")
	flags.BoolVar(&cfg.Metrics.Enabled, "metrics", cfg.Metrics.Enabled, "serve Prometheus metrics")
	flags.IntVar(&cfg.Metrics.Port, "metrics-port", cfg.Metrics.Port, "metrics listen port")
	flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help, _ := flags.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage: bucketfs [flags] [bucket] [mount-point]\n\n%s", flags.FlagUsages())
		return nil
	}

	// Remember which flags the user set; file and environment layers
	// must not override them.
	fromFlags := *cfg

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}
	applyFlagOverrides(cfg, &fromFlags, flags)

	// Positional bucket and mount point win over everything.
	if args := flags.Args(); len(args) > 0 {
		cfg.Bucket = args[0]
		if len(args) > 1 {
			cfg.MountPoint = args[1]
		}
		if len(args) > 2 {
			return fmt.Errorf("unexpected argument: %s", args[2])
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := utils.SetupLogging(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("store client: %w", err)
	}
	defer store.Close()

	if err := store.HealthCheck(ctx, cfg.Bucket); err != nil {
		return fmt.Errorf("bucket %s not reachable: %w", cfg.Bucket, err)
	}

	collector := metrics.NewCollector(cfg.Metrics, logger)
	if err := collector.Start(ctx); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	contentReader := reader.New(reader.Config{
		UseDummy:      cfg.Reader.Dummy,
		Fixtures:      cfg.Reader.Fixtures,
		CacheContent:  cfg.ContentCache.Enabled,
		CacheMaxBytes: cfg.ContentCache.MaxSizeBytes(),
	}, store, cfg.Bucket, collector, logger)

	fsOpts := filesystem.Options{
		Bucket:    cfg.Bucket,
		Store:     store,
		Reader:    contentReader,
		Collector: collector,
		Logger:    logger,
		ReadOnly:  cfg.ReadOnly,
	}
	if cfg.StatCache.Enabled {
		fsOpts.StatCache = cache.NewStatCache(cfg.StatCache.TTL)
	}
	fsys := filesystem.New(fsOpts)

	driver := fuse.NewDriver(fsys, fuse.Options{
		MountPoint:   cfg.MountPoint,
		ReadOnly:     cfg.ReadOnly,
		AllowOther:   cfg.Mount.AllowOther,
		Debug:        cfg.Debug,
		FSName:       cfg.Mount.FSName,
		MaxWrite:     cfg.Mount.MaxWrite,
		AttrTimeout:  cfg.Mount.AttrTimeout,
		EntryTimeout: cfg.Mount.EntryTimeout,
		AsyncRead:    cfg.Tuning.AsyncRead,
		ExtraOptions: cfg.Mount.Options,
	}, logger)

	if err := driver.Mount(ctx); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	logger.Info("serving", "bucket", cfg.Bucket, "mount_point", cfg.MountPoint,
		"store", cfg.Store.Driver, "read_only", cfg.ReadOnly)

	if cfg.Tuning.Enabled {
		tuner := fuse.NewTuner(fuse.TunerOptions{
			MountPoint:          cfg.MountPoint,
			ReadAheadKB:         cfg.Tuning.ReadAheadKB,
			MaxBackground:       cfg.Tuning.MaxBackground,
			CongestionThreshold: cfg.Tuning.CongestionThreshold,
		}, logger)
		go tuner.Run(ctx)
	}

	watcher := fuse.NewWatcher(cfg.MountPoint, 30*time.Second, stop, logger)
	watcher.Start()
	defer watcher.Stop()

	// Block until a signal arrives or the mount disappears.
	<-ctx.Done()

	// Buffered writes not yet flushed by the kernel are lost on
	// shutdown; name them so the loss is at least visible.
	for _, key := range fsys.DirtyKeys() {
		logger.Warn("unflushed data lost", "key", key)
	}

	if driver.IsMounted() {
		if err := driver.Unmount(); err != nil {
			logger.Error("unmount failed", "error", err)
		}
	}
	driver.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := collector.Stop(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", "error", err)
	}

	logger.Info("shut down", "mount_point", cfg.MountPoint)
	return nil
}

// applyFlagOverrides re-applies every flag the user set on the command
// line over the file and environment layers.
func applyFlagOverrides(cfg, fromFlags *config.Config, flags *pflag.FlagSet) {
	set := func(name string) bool { return flags.Changed(name) }

	if set("bucket") {
		cfg.Bucket = fromFlags.Bucket
	}
	if set("mount-point") {
		cfg.MountPoint = fromFlags.MountPoint
	}
	if set("store") {
		cfg.Store.Driver = fromFlags.Store.Driver
	}
	if set("read-only") {
		cfg.ReadOnly = fromFlags.ReadOnly
	}
	if set("log-level") {
		cfg.LogLevel = fromFlags.LogLevel
	}
	if set("log-json") {
		cfg.LogJSON = fromFlags.LogJSON
	}
	if set("debug") {
		cfg.Debug = fromFlags.Debug
	}
	if set("stat-cache") {
		cfg.StatCache.Enabled = fromFlags.StatCache.Enabled
	}
	if set("stat-cache-ttl") {
		cfg.StatCache.TTL = fromFlags.StatCache.TTL
	}
	if set("content-cache") {
		cfg.ContentCache.Enabled = fromFlags.ContentCache.Enabled
	}
	if set("content-cache-size") {
		cfg.ContentCache.MaxSize = fromFlags.ContentCache.MaxSize
	}
	if set("dummy-reader") {
		cfg.Reader.Dummy = fromFlags.Reader.Dummy
	}
	if set("allow-other") {
		cfg.Mount.AllowOther = fromFlags.Mount.AllowOther
	}
	if set("metrics") {
		cfg.Metrics.Enabled = fromFlags.Metrics.Enabled
	}
	if set("metrics-port") {
		cfg.Metrics.Port = fromFlags.Metrics.Port
	}
}
