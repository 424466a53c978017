// Package storage constructs the configured store client. The concrete
// drivers live in subpackages; everything above this layer sees only
// types.StoreClient.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bucketfs/bucketfs/internal/config"
	"github.com/bucketfs/bucketfs/internal/storage/memory"
	"github.com/bucketfs/bucketfs/internal/storage/mongodb"
	"github.com/bucketfs/bucketfs/internal/storage/postgres"
	"github.com/bucketfs/bucketfs/internal/storage/s3"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// New constructs the store client named by cfg.Store.Driver. Driver
// configs are copied so constructors can apply defaults without
// mutating the caller's configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (types.StoreClient, error) {
	switch cfg.Store.Driver {
	case "s3", "":
		s3cfg := cfg.Store.S3
		return s3.New(ctx, cfg.Bucket, &s3cfg, logger)
	case "postgres":
		pgcfg := cfg.Store.Postgres
		return postgres.New(ctx, &pgcfg, logger)
	case "mongodb":
		mcfg := cfg.Store.MongoDB
		return mongodb.New(ctx, &mcfg, logger)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}
}
