// Package mongodb implements the store client on MongoDB. Each object
// is a single document carrying its bytes inline, so objects are capped
// by the 16MB BSON document limit; the driver suits metadata-heavy
// workloads with many small objects.
package mongodb

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
	"github.com/bucketfs/bucketfs/pkg/utils"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// NewDefaultConfig returns a Config with default database and collection
// names. The URI must still be supplied.
func NewDefaultConfig() *Config {
	return &Config{
		Database:   "bucketfs",
		Collection: "objects",
		Timeout:    10 * time.Second,
	}
}

type objectDoc struct {
	Bucket  string           `bson:"bucket"`
	Key     string           `bson:"key"`
	Data    primitive.Binary `bson:"data"`
	Size    int64            `bson:"size"`
	ETag    string           `bson:"etag"`
	ModTime time.Time        `bson:"mod_time"`
}

// Store implements types.StoreClient on a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

// New connects to MongoDB, verifies connectivity and ensures the unique
// (bucket, key) index exists.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil || cfg.URI == "" {
		return nil, fmt.Errorf("mongodb URI cannot be empty")
	}
	defaults := NewDefaultConfig()
	if cfg.Database == "" {
		cfg.Database = defaults.Database
	}
	if cfg.Collection == "" {
		cfg.Collection = defaults.Collection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to reach mongodb: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "bucket", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &Store{
		client: client,
		coll:   coll,
		logger: logger.With("component", "mongodb-store"),
	}, nil
}

// GetMetadata implements types.StoreClient. Size and ETag are stored on
// the document at write time so metadata lookups never load the bytes.
func (s *Store) GetMetadata(ctx context.Context, bucket, key string) (*types.ObjectInfo, error) {
	var doc objectDoc
	err := s.coll.FindOne(ctx,
		bson.M{"bucket": bucket, "key": key},
		options.FindOne().SetProjection(bson.M{"size": 1, "etag": 1, "mod_time": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, bfserrors.NotFound("head", bucket, key)
	}
	if err != nil {
		return nil, bfserrors.Transport("head", bucket, key, err)
	}
	return &types.ObjectInfo{
		Key:          key,
		Size:         doc.Size,
		LastModified: doc.ModTime,
		ETag:         doc.ETag,
	}, nil
}

// Read implements types.StoreClient. The document is fetched whole and
// the range carved out in Go; BSON has no byte-range projection.
func (s *Store) Read(ctx context.Context, bucket, key string, offset, length int64) ([]byte, error) {
	var doc objectDoc
	err := s.coll.FindOne(ctx, bson.M{"bucket": bucket, "key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, bfserrors.NotFound("get", bucket, key)
	}
	if err != nil {
		return nil, bfserrors.Transport("get", bucket, key, err)
	}

	data := doc.Data.Data
	size := int64(len(data))
	if offset < 0 {
		offset = 0
	}
	if offset >= size {
		return nil, nil
	}
	end := size
	if length > 0 && offset+length < size {
		end = offset + length
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out, nil
}

// Write implements types.StoreClient as an upsert.
func (s *Store) Write(ctx context.Context, bucket, key string, data []byte) error {
	doc := objectDoc{
		Bucket:  bucket,
		Key:     key,
		Data:    primitive.Binary{Data: data},
		Size:    int64(len(data)),
		ETag:    fmt.Sprintf("%x", md5.Sum(data)),
		ModTime: time.Now().UTC(),
	}
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"bucket": bucket, "key": key},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return bfserrors.Transport("put", bucket, key, err)
	}
	return nil
}

// Delete implements types.StoreClient. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"bucket": bucket, "key": key})
	if err != nil {
		return bfserrors.Transport("delete", bucket, key, err)
	}
	return nil
}

// List implements types.StoreClient. Prefix matching uses an anchored
// regex that the (bucket, key) index can serve; delimiter grouping
// happens in Go.
func (s *Store) List(ctx context.Context, bucket, prefix, delimiter string, maxResults int) (*types.ListResult, error) {
	filter := bson.M{"bucket": bucket}
	if prefix != "" {
		filter["key"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "key", Value: 1}}).
		SetProjection(bson.M{"key": 1, "size": 1, "etag": 1, "mod_time": 1})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, bfserrors.Transport("list", bucket, prefix, err)
	}
	defer cursor.Close(ctx)

	var objects []types.ObjectInfo
	for cursor.Next(ctx) {
		var doc objectDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, bfserrors.Transport("list", bucket, prefix, err)
		}
		objects = append(objects, types.ObjectInfo{
			Key:          doc.Key,
			Size:         doc.Size,
			LastModified: doc.ModTime,
			ETag:         doc.ETag,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, bfserrors.Transport("list", bucket, prefix, err)
	}

	return utils.CollapseListing(objects, prefix, delimiter, maxResults), nil
}

// HealthCheck implements types.StoreClient.
func (s *Store) HealthCheck(ctx context.Context, bucket string) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close implements types.StoreClient.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
