package s3

// Config represents S3 driver configuration.
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	MaxRetries      int    `yaml:"max_retries"`
	StorageClass    string `yaml:"storage_class"`

	// Upload tuning, applied to both the CargoShip transporter and the
	// transfer-manager fallback.
	UseCargoShip       bool  `yaml:"use_cargoship"`
	MultipartThreshold int64 `yaml:"multipart_threshold"`
	MultipartChunkSize int64 `yaml:"multipart_chunk_size"`
	UploadConcurrency  int   `yaml:"upload_concurrency"`
}

// NewDefaultConfig returns the driver defaults: AWS us-east-1, CargoShip
// uploads with 32 MiB multipart threshold and 16 MiB parts.
func NewDefaultConfig() *Config {
	return &Config{
		Region:             "us-east-1",
		MaxRetries:         3,
		StorageClass:       "STANDARD",
		UseCargoShip:       true,
		MultipartThreshold: 32 * 1024 * 1024,
		MultipartChunkSize: 16 * 1024 * 1024,
		UploadConcurrency:  8,
	}
}

func (c *Config) withDefaults() *Config {
	cfg := *c
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.StorageClass == "" {
		cfg.StorageClass = "STANDARD"
	}
	if cfg.MultipartThreshold <= 0 {
		cfg.MultipartThreshold = 32 * 1024 * 1024
	}
	if cfg.MultipartChunkSize <= 0 {
		cfg.MultipartChunkSize = 16 * 1024 * 1024
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 8
	}
	return &cfg
}
