// Package postgres implements the store client on PostgreSQL, with one
// row per object. It is intended for development and for deployments
// that already run PostgreSQL and do not want an object store; listings
// and ranged reads are served with SQL rather than in Go.
package postgres

import (
	"context"
	"crypto/md5"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
	"github.com/bucketfs/bucketfs/pkg/utils"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NewDefaultConfig returns a Config with sensible connection pool limits.
// The DSN must still be supplied.
func NewDefaultConfig() *Config {
	return &Config{
		MaxOpenConns:    16,
		MaxIdleConns:    4,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	bucket   TEXT        NOT NULL,
	key      TEXT        NOT NULL,
	data     BYTEA       NOT NULL,
	etag     TEXT        NOT NULL,
	mod_time TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (bucket, key)
)`

// Store implements types.StoreClient on a PostgreSQL database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens the database, verifies connectivity and creates the objects
// table if it does not exist yet.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "postgres-store"),
	}, nil
}

// GetMetadata implements types.StoreClient.
func (s *Store) GetMetadata(ctx context.Context, bucket, key string) (*types.ObjectInfo, error) {
	info := &types.ObjectInfo{Key: key}
	err := s.db.QueryRowContext(ctx,
		`SELECT octet_length(data), mod_time, etag FROM objects WHERE bucket = $1 AND key = $2`,
		bucket, key,
	).Scan(&info.Size, &info.LastModified, &info.ETag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bfserrors.NotFound("head", bucket, key)
	}
	if err != nil {
		return nil, bfserrors.Transport("head", bucket, key, err)
	}
	return info, nil
}

// Read implements types.StoreClient. The byte range is carved out with
// substring so only the requested slice crosses the wire; a range past
// the end of the object comes back empty, matching the contract.
func (s *Store) Read(ctx context.Context, bucket, key string, offset, length int64) ([]byte, error) {
	if offset < 0 {
		offset = 0
	}

	var data []byte
	var err error
	if length > 0 {
		err = s.db.QueryRowContext(ctx,
			`SELECT substring(data FROM $3 FOR $4) FROM objects WHERE bucket = $1 AND key = $2`,
			bucket, key, offset+1, length,
		).Scan(&data)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT substring(data FROM $3) FROM objects WHERE bucket = $1 AND key = $2`,
			bucket, key, offset+1,
		).Scan(&data)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bfserrors.NotFound("get", bucket, key)
	}
	if err != nil {
		return nil, bfserrors.Transport("get", bucket, key, err)
	}
	return data, nil
}

// Write implements types.StoreClient as an upsert. The ETag mirrors what
// S3 reports for single-part uploads.
func (s *Store) Write(ctx context.Context, bucket, key string, data []byte) error {
	etag := fmt.Sprintf("%x", md5.Sum(data))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (bucket, key, data, etag, mod_time)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (bucket, key)
		DO UPDATE SET data = EXCLUDED.data, etag = EXCLUDED.etag, mod_time = now()`,
		bucket, key, data, etag)
	if err != nil {
		return bfserrors.Transport("put", bucket, key, err)
	}
	return nil
}

// Delete implements types.StoreClient. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM objects WHERE bucket = $1 AND key = $2`, bucket, key)
	if err != nil {
		return bfserrors.Transport("delete", bucket, key, err)
	}
	return nil
}

// List implements types.StoreClient. Prefix matching happens in SQL and
// delimiter grouping in Go, since LIKE has no notion of common prefixes.
func (s *Store) List(ctx context.Context, bucket, prefix, delimiter string, maxResults int) (*types.ListResult, error) {
	pattern := escapeLike(prefix) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, octet_length(data), mod_time, etag
		FROM objects
		WHERE bucket = $1 AND key LIKE $2 ESCAPE '\'
		ORDER BY key`,
		bucket, pattern)
	if err != nil {
		return nil, bfserrors.Transport("list", bucket, prefix, err)
	}
	defer rows.Close()

	var objects []types.ObjectInfo
	for rows.Next() {
		var obj types.ObjectInfo
		if err := rows.Scan(&obj.Key, &obj.Size, &obj.LastModified, &obj.ETag); err != nil {
			return nil, bfserrors.Transport("list", bucket, prefix, err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, bfserrors.Transport("list", bucket, prefix, err)
	}

	return utils.CollapseListing(objects, prefix, delimiter, maxResults), nil
}

// HealthCheck implements types.StoreClient.
func (s *Store) HealthCheck(ctx context.Context, bucket string) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// Close implements types.StoreClient.
func (s *Store) Close() error {
	return s.db.Close()
}

// escapeLike escapes LIKE metacharacters so a key prefix matches
// literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
