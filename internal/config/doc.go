/*
Package config provides layered configuration for BucketFS.

Sources are applied in precedence order:

	┌─────────────────────────────────────────────┐
	│          Command-line Flags                 │ ← Highest Priority
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│        Environment Variables                │
	│            (BUCKETFS_*)                     │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

A complete configuration file:

	bucket: my-bucket
	mount_point: /mnt/bucket
	read_only: false
	log_level: INFO
	log_json: true

	store:
	  driver: s3
	  s3:
	    region: us-west-2
	    endpoint: ""            # set for MinIO, Ceph RGW, LocalStack
	    force_path_style: false
	    storage_class: STANDARD
	    use_cargoship: true

	stat_cache:
	  enabled: true
	  ttl: 60s

	content_cache:
	  enabled: true
	  max_size: 512MB

	mount:
	  allow_other: false
	  max_write: 1048576
	  attr_timeout: 1s
	  entry_timeout: 1s
	  fs_name: bucketfs

	tuning:
	  enabled: false
	  read_ahead_kb: 1024
	  max_background: 64
	  congestion_threshold: 48
	  async_read: true

	metrics:
	  enabled: true
	  port: 9090
	  path: /metrics

The reader section exists for development: setting reader.dummy serves
reads from in-memory fixtures without touching any store.

Duration fields accept Go duration strings ("60s", "5m") in files and
environment variables. SaveToFile writes them back as nanosecond
integers, which load equally well.
*/
package config
