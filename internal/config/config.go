package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/bucketfs/bucketfs/internal/metrics"
	"github.com/bucketfs/bucketfs/internal/storage/mongodb"
	"github.com/bucketfs/bucketfs/internal/storage/postgres"
	"github.com/bucketfs/bucketfs/internal/storage/s3"
	"github.com/bucketfs/bucketfs/pkg/utils"
)

// Config represents the complete application configuration
type Config struct {
	Bucket       string             `yaml:"bucket"`
	MountPoint   string             `yaml:"mount_point"`
	ReadOnly     bool               `yaml:"read_only"`
	LogLevel     string             `yaml:"log_level"`
	LogJSON      bool               `yaml:"log_json"`
	Debug        bool               `yaml:"debug"`
	Store        StoreConfig        `yaml:"store"`
	StatCache    StatCacheConfig    `yaml:"stat_cache"`
	ContentCache ContentCacheConfig `yaml:"content_cache"`
	Reader       ReaderConfig       `yaml:"reader"`
	Mount        MountConfig        `yaml:"mount"`
	Tuning       TuningConfig       `yaml:"tuning"`
	Metrics      metrics.Config     `yaml:"metrics"`
}

// StoreConfig selects and parameterizes the backing store
type StoreConfig struct {
	Driver   string          `yaml:"driver"`
	S3       s3.Config       `yaml:"s3"`
	Postgres postgres.Config `yaml:"postgres"`
	MongoDB  mongodb.Config  `yaml:"mongodb"`
}

// StatCacheConfig controls the metadata cache
type StatCacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// ContentCacheConfig controls the whole-object content cache
type ContentCacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	MaxSize string `yaml:"max_size"`
}

// MaxSizeBytes returns the parsed cache capacity, or zero (unbounded)
// when MaxSize is empty or unparseable. Validate reports the latter.
func (c ContentCacheConfig) MaxSizeBytes() int64 {
	if c.MaxSize == "" {
		return 0
	}
	n, err := utils.ParseBytes(c.MaxSize)
	if err != nil {
		return 0
	}
	return n
}

// ReaderConfig selects the read path
type ReaderConfig struct {
	Dummy    bool              `yaml:"dummy"`
	Fixtures map[string]string `yaml:"fixtures"`
}

// MountConfig carries FUSE mount options
type MountConfig struct {
	AllowOther   bool          `yaml:"allow_other"`
	MaxWrite     int           `yaml:"max_write"`
	AttrTimeout  time.Duration `yaml:"attr_timeout"`
	EntryTimeout time.Duration `yaml:"entry_timeout"`
	FSName       string        `yaml:"fs_name"`
	Options      []string      `yaml:"options"`
}

// TuningConfig controls post-mount kernel parameter tuning
type TuningConfig struct {
	Enabled             bool `yaml:"enabled"`
	ReadAheadKB         int  `yaml:"read_ahead_kb"`
	MaxBackground       int  `yaml:"max_background"`
	CongestionThreshold int  `yaml:"congestion_threshold"`
	AsyncRead           bool `yaml:"async_read"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Config {
	return &Config{
		LogLevel: "INFO",
		Store: StoreConfig{
			Driver:   "s3",
			S3:       *s3.NewDefaultConfig(),
			Postgres: *postgres.NewDefaultConfig(),
			MongoDB:  *mongodb.NewDefaultConfig(),
		},
		StatCache: StatCacheConfig{
			Enabled: true,
			TTL:     60 * time.Second,
		},
		ContentCache: ContentCacheConfig{
			Enabled: true,
			MaxSize: "512MB",
		},
		Mount: MountConfig{
			MaxWrite:     1 << 20,
			AttrTimeout:  1 * time.Second,
			EntryTimeout: 1 * time.Second,
			FSName:       "bucketfs",
		},
		Tuning: TuningConfig{
			Enabled:             false,
			ReadAheadKB:         1024,
			MaxBackground:       64,
			CongestionThreshold: 48,
			AsyncRead:           true,
		},
		Metrics: metrics.Config{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from BUCKETFS_* environment variables
func (c *Config) LoadFromEnv() error {
	if val := os.Getenv("BUCKETFS_BUCKET"); val != "" {
		c.Bucket = val
	}
	if val := os.Getenv("BUCKETFS_MOUNT_POINT"); val != "" {
		c.MountPoint = val
	}
	if val := os.Getenv("BUCKETFS_READ_ONLY"); val != "" {
		c.ReadOnly = parseBool(val)
	}
	if val := os.Getenv("BUCKETFS_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("BUCKETFS_LOG_JSON"); val != "" {
		c.LogJSON = parseBool(val)
	}
	if val := os.Getenv("BUCKETFS_DEBUG"); val != "" {
		c.Debug = parseBool(val)
	}

	// Store settings
	if val := os.Getenv("BUCKETFS_STORE_DRIVER"); val != "" {
		c.Store.Driver = val
	}
	if val := os.Getenv("BUCKETFS_S3_REGION"); val != "" {
		c.Store.S3.Region = val
	}
	if val := os.Getenv("BUCKETFS_S3_ENDPOINT"); val != "" {
		c.Store.S3.Endpoint = val
	}
	if val := os.Getenv("BUCKETFS_S3_ACCESS_KEY_ID"); val != "" {
		c.Store.S3.AccessKeyID = val
	}
	if val := os.Getenv("BUCKETFS_S3_SECRET_ACCESS_KEY"); val != "" {
		c.Store.S3.SecretAccessKey = val
	}
	if val := os.Getenv("BUCKETFS_S3_SESSION_TOKEN"); val != "" {
		c.Store.S3.SessionToken = val
	}
	if val := os.Getenv("BUCKETFS_S3_FORCE_PATH_STYLE"); val != "" {
		c.Store.S3.ForcePathStyle = parseBool(val)
	}
	if val := os.Getenv("BUCKETFS_POSTGRES_DSN"); val != "" {
		c.Store.Postgres.DSN = val
	}
	if val := os.Getenv("BUCKETFS_MONGODB_URI"); val != "" {
		c.Store.MongoDB.URI = val
	}

	// Cache settings
	if val := os.Getenv("BUCKETFS_STAT_CACHE_ENABLED"); val != "" {
		c.StatCache.Enabled = parseBool(val)
	}
	if val := os.Getenv("BUCKETFS_STAT_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.StatCache.TTL = duration
		}
	}
	if val := os.Getenv("BUCKETFS_CONTENT_CACHE_ENABLED"); val != "" {
		c.ContentCache.Enabled = parseBool(val)
	}
	if val := os.Getenv("BUCKETFS_CONTENT_CACHE_MAX_SIZE"); val != "" {
		c.ContentCache.MaxSize = val
	}

	// Metrics settings
	if val := os.Getenv("BUCKETFS_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = parseBool(val)
	}
	if val := os.Getenv("BUCKETFS_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.MountPoint == "" {
		return fmt.Errorf("mount_point is required")
	}

	switch c.Store.Driver {
	case "s3", "postgres", "mongodb", "memory":
	default:
		return fmt.Errorf("invalid store driver: %s (must be one of: s3, postgres, mongodb, memory)", c.Store.Driver)
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.LogLevel, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.StatCache.TTL < 0 {
		return fmt.Errorf("stat_cache.ttl cannot be negative")
	}
	if c.ContentCache.Enabled && c.ContentCache.MaxSize != "" {
		if _, err := utils.ParseBytes(c.ContentCache.MaxSize); err != nil {
			return fmt.Errorf("invalid content_cache.max_size: %w", err)
		}
	}

	if c.Mount.MaxWrite <= 0 {
		return fmt.Errorf("mount.max_write must be greater than 0")
	}

	if c.Tuning.ReadAheadKB < 0 {
		return fmt.Errorf("tuning.read_ahead_kb cannot be negative")
	}
	if c.Tuning.MaxBackground < 0 {
		return fmt.Errorf("tuning.max_background cannot be negative")
	}
	if c.Tuning.CongestionThreshold < 0 {
		return fmt.Errorf("tuning.congestion_threshold cannot be negative")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	return nil
}

func parseBool(val string) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
