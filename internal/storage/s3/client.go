package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"
	cargoships3 "github.com/scttfrdmn/cargoship/pkg/aws/s3"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// Client implements types.StoreClient against S3 and S3-compatible stores.
type Client struct {
	api         *s3.Client
	uploader    *manager.Uploader
	downloader  *manager.Downloader
	transporter *cargoships3.Transporter
	bucket      string
	config      *Config
	logger      *slog.Logger
}

// New creates an S3 client bound to bucket. The CargoShip transporter is
// attached when enabled; it only serves the bound bucket.
func New(ctx context.Context, bucket string, cfg *Config, logger *slog.Logger) (*Client, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "s3-store", "bucket", bucket)

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(cfg.MaxRetries),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	uploader := manager.NewUploader(api, func(u *manager.Uploader) {
		u.PartSize = cfg.MultipartChunkSize
		u.Concurrency = cfg.UploadConcurrency
	})
	downloader := manager.NewDownloader(api, func(d *manager.Downloader) {
		d.PartSize = cfg.MultipartChunkSize
		d.Concurrency = cfg.UploadConcurrency
	})

	var transporter *cargoships3.Transporter
	if cfg.UseCargoShip {
		cargoCfg := awsconfig.S3Config{
			Bucket:             bucket,
			StorageClass:       convertToCargoShipStorageClass(cfg.StorageClass),
			MultipartThreshold: cfg.MultipartThreshold,
			MultipartChunkSize: cfg.MultipartChunkSize,
			Concurrency:        cfg.UploadConcurrency,
		}
		transporter = cargoships3.NewTransporter(api, cargoCfg)
		logger.Info("CargoShip upload optimization enabled",
			"storage_class", cfg.StorageClass,
			"chunk_size", cfg.MultipartChunkSize,
			"concurrency", cfg.UploadConcurrency)
	}

	return &Client{
		api:         api,
		uploader:    uploader,
		downloader:  downloader,
		transporter: transporter,
		bucket:      bucket,
		config:      cfg,
		logger:      logger,
	}, nil
}

// GetMetadata implements types.StoreClient.
func (c *Client) GetMetadata(ctx context.Context, bucket, key string) (*types.ObjectInfo, error) {
	result, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, c.translateError(err, "head", bucket, key)
	}

	return &types.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		LastModified: aws.ToTime(result.LastModified),
		ETag:         aws.ToString(result.ETag),
	}, nil
}

// Read implements types.StoreClient. A length of zero or less reads from
// offset to the end of the object; a range starting at or past the end
// returns no data and no error.
func (c *Client) Read(ctx context.Context, bucket, key string, offset, length int64) ([]byte, error) {
	// Whole-object reads go through the transfer manager for concurrent
	// part downloads.
	if offset <= 0 && length <= 0 {
		buf := manager.NewWriteAtBuffer(nil)
		_, err := c.downloader.Download(ctx, buf, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, c.translateError(err, "get", bucket, key)
		}
		return buf.Bytes(), nil
	}

	result, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  buildRange(offset, length),
	})
	if err != nil {
		// A range starting past the end of the object is the store's
		// way of saying EOF, not a failure.
		if isInvalidRange(err) {
			return nil, nil
		}
		return nil, c.translateError(err, "get", bucket, key)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, bfserrors.Transport("get", bucket, key, err)
	}
	return data, nil
}

// Write implements types.StoreClient. Uploads prefer the CargoShip
// transporter and fall back to the transfer manager on failure.
func (c *Client) Write(ctx context.Context, bucket, key string, data []byte) error {
	contentType := detectContentType(key)

	if c.transporter != nil && bucket == c.bucket {
		archive := cargoships3.Archive{
			Key:          key,
			Reader:       bytes.NewReader(data),
			Size:         int64(len(data)),
			StorageClass: convertToCargoShipStorageClass(c.config.StorageClass),
			Metadata: map[string]string{
				"bucketfs-upload": "true",
				"content-type":    contentType,
			},
		}

		result, uploadErr := c.transporter.Upload(ctx, archive)
		if uploadErr == nil {
			c.logger.Debug("CargoShip upload completed",
				"key", key,
				"size", len(data),
				"throughput", result.Throughput,
				"duration", result.Duration)
			return nil
		}
		c.logger.Warn("CargoShip upload failed, falling back to transfer manager", "key", key, "error", uploadErr)
	}

	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		StorageClass: convertToStorageClass(c.config.StorageClass),
	})
	if err != nil {
		return c.translateError(err, "put", bucket, key)
	}
	return nil
}

// Delete implements types.StoreClient. S3 treats deletion of a missing key
// as success, which matches the contract.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return c.translateError(err, "delete", bucket, key)
	}
	return nil
}

// List implements types.StoreClient, paginating until the listing is
// exhausted or maxResults entries have been collected.
func (c *Client) List(ctx context.Context, bucket, prefix, delimiter string, maxResults int) (*types.ListResult, error) {
	result := &types.ListResult{}
	count := 0

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}

	for {
		if maxResults > 0 {
			remaining := maxResults - count
			if remaining <= 0 {
				break
			}
			input.MaxKeys = aws.Int32(clampInt32(remaining))
		}

		page, err := c.api.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, c.translateError(err, "list", bucket, prefix)
		}

		for _, obj := range page.Contents {
			result.Objects = append(result.Objects, types.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			})
			count++
		}
		for _, cp := range page.CommonPrefixes {
			result.Prefixes = append(result.Prefixes, aws.ToString(cp.Prefix))
			count++
		}

		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}

	return result, nil
}

// HealthCheck implements types.StoreClient by heading the bucket.
func (c *Client) HealthCheck(ctx context.Context, bucket string) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// Close implements types.StoreClient. The SDK client holds no resources
// that need explicit release.
func (c *Client) Close() error {
	return nil
}

// Helper methods

func (c *Client) translateError(err error, op, bucket, key string) error {
	switch {
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		return bfserrors.NotFound(op, bucket, key)
	default:
		return bfserrors.Transport(op, bucket, key, err)
	}
}

// buildRange formats an HTTP byte-range header. A length of zero or less
// means "from offset to the end".
func buildRange(offset, length int64) *string {
	if offset <= 0 && length <= 0 {
		return nil
	}
	if length > 0 {
		return aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	}
	return aws.String(fmt.Sprintf("bytes=%d-", offset))
}

// isInvalidRange reports whether err is the store rejecting a byte range
// that starts at or past the end of the object.
func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func clampInt32(v int) int32 {
	if v > 0x7FFFFFFF {
		return 0x7FFFFFFF
	}
	return int32(v)
}

func convertToStorageClass(class string) s3types.StorageClass {
	switch strings.ToUpper(class) {
	case "STANDARD_IA":
		return s3types.StorageClassStandardIa
	case "ONEZONE_IA":
		return s3types.StorageClassOnezoneIa
	case "GLACIER_IR":
		return s3types.StorageClassGlacierIr
	case "GLACIER":
		return s3types.StorageClassGlacier
	case "DEEP_ARCHIVE":
		return s3types.StorageClassDeepArchive
	case "INTELLIGENT_TIERING":
		return s3types.StorageClassIntelligentTiering
	default:
		return s3types.StorageClassStandard
	}
}

func convertToCargoShipStorageClass(class string) awsconfig.StorageClass {
	switch strings.ToUpper(class) {
	case "STANDARD_IA":
		return awsconfig.StorageClassStandardIA
	case "ONEZONE_IA":
		return awsconfig.StorageClassOneZoneIA
	case "GLACIER_IR":
		return awsconfig.StorageClassGlacier // CargoShip has no instant-retrieval class
	case "GLACIER":
		return awsconfig.StorageClassGlacier
	case "DEEP_ARCHIVE":
		return awsconfig.StorageClassDeepArchive
	case "INTELLIGENT_TIERING":
		return awsconfig.StorageClassIntelligentTiering
	default:
		return awsconfig.StorageClassStandard
	}
}

func detectContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".xml"):
		return "application/xml"
	case strings.HasSuffix(key, ".html"):
		return "text/html"
	case strings.HasSuffix(key, ".txt"), strings.HasSuffix(key, ".md"):
		return "text/plain"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
