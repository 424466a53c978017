package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
)

func TestBuildRange(t *testing.T) {
	tests := []struct {
		name     string
		offset   int64
		length   int64
		expected string
	}{
		{name: "whole object", offset: 0, length: 0, expected: ""},
		{name: "offset to end", offset: 100, length: 0, expected: "bytes=100-"},
		{name: "bounded range", offset: 100, length: 50, expected: "bytes=100-149"},
		{name: "length from start", offset: 0, length: 10, expected: "bytes=0-9"},
		{name: "single byte", offset: 5, length: 1, expected: "bytes=5-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildRange(tt.offset, tt.length)
			if tt.expected == "" {
				if got != nil {
					t.Errorf("Expected nil range, got %q", aws.ToString(got))
				}
				return
			}
			if got == nil {
				t.Fatalf("Expected range %q, got nil", tt.expected)
			}
			if aws.ToString(got) != tt.expected {
				t.Errorf("Expected range %q, got %q", tt.expected, aws.ToString(got))
			}
		})
	}
}

func TestIsInvalidRange(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "invalid range API error",
			err:      &smithy.GenericAPIError{Code: "InvalidRange", Message: "range not satisfiable"},
			expected: true,
		},
		{
			name:     "wrapped invalid range",
			err:      fmt.Errorf("get: %w", &smithy.GenericAPIError{Code: "InvalidRange"}),
			expected: true,
		},
		{
			name:     "other API error",
			err:      &smithy.GenericAPIError{Code: "NoSuchKey"},
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("connection reset"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isInvalidRange(tt.err); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTranslateError(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name         string
		err          error
		expectedCode bfserrors.Code
	}{
		{name: "no such key", err: &s3types.NoSuchKey{}, expectedCode: bfserrors.CodeNotFound},
		{name: "head not found", err: &s3types.NotFound{}, expectedCode: bfserrors.CodeNotFound},
		{
			name:         "wrapped not found",
			err:          fmt.Errorf("head: %w", &s3types.NotFound{}),
			expectedCode: bfserrors.CodeNotFound,
		},
		{name: "network failure", err: errors.New("dial tcp: timeout"), expectedCode: bfserrors.CodeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translated := c.translateError(tt.err, "get", "bucket", "key")
			if got := bfserrors.CodeOf(translated); got != tt.expectedCode {
				t.Errorf("Expected code %s, got %s", tt.expectedCode, got)
			}
		})
	}
}

func TestConvertToStorageClass(t *testing.T) {
	tests := []struct {
		class    string
		expected s3types.StorageClass
	}{
		{class: "STANDARD", expected: s3types.StorageClassStandard},
		{class: "standard_ia", expected: s3types.StorageClassStandardIa},
		{class: "ONEZONE_IA", expected: s3types.StorageClassOnezoneIa},
		{class: "GLACIER_IR", expected: s3types.StorageClassGlacierIr},
		{class: "GLACIER", expected: s3types.StorageClassGlacier},
		{class: "DEEP_ARCHIVE", expected: s3types.StorageClassDeepArchive},
		{class: "INTELLIGENT_TIERING", expected: s3types.StorageClassIntelligentTiering},
		{class: "", expected: s3types.StorageClassStandard},
		{class: "BOGUS", expected: s3types.StorageClassStandard},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			if got := convertToStorageClass(tt.class); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestConvertToCargoShipStorageClass(t *testing.T) {
	tests := []struct {
		class    string
		expected awsconfig.StorageClass
	}{
		{class: "STANDARD", expected: awsconfig.StorageClassStandard},
		{class: "STANDARD_IA", expected: awsconfig.StorageClassStandardIA},
		{class: "ONEZONE_IA", expected: awsconfig.StorageClassOneZoneIA},
		{class: "GLACIER_IR", expected: awsconfig.StorageClassGlacier},
		{class: "GLACIER", expected: awsconfig.StorageClassGlacier},
		{class: "DEEP_ARCHIVE", expected: awsconfig.StorageClassDeepArchive},
		{class: "INTELLIGENT_TIERING", expected: awsconfig.StorageClassIntelligentTiering},
		{class: "BOGUS", expected: awsconfig.StorageClassStandard},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			if got := convertToCargoShipStorageClass(tt.class); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{key: "data/report.json", expected: "application/json"},
		{key: "feed.xml", expected: "application/xml"},
		{key: "index.html", expected: "text/html"},
		{key: "notes.txt", expected: "text/plain"},
		{key: "README.md", expected: "text/plain"},
		{key: "photos/cat.jpg", expected: "image/jpeg"},
		{key: "photos/cat.jpeg", expected: "image/jpeg"},
		{key: "diagram.png", expected: "image/png"},
		{key: "paper.pdf", expected: "application/pdf"},
		{key: "binary.dat", expected: "application/octet-stream"},
		{key: "no-extension", expected: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := detectContentType(tt.key); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Region != "us-east-1" {
		t.Errorf("Expected region us-east-1, got %s", cfg.Region)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.MaxRetries)
	}
	if cfg.StorageClass != "STANDARD" {
		t.Errorf("Expected STANDARD storage class, got %s", cfg.StorageClass)
	}
	if !cfg.UseCargoShip {
		t.Error("Expected CargoShip enabled by default")
	}
	if cfg.MultipartThreshold != 32*1024*1024 {
		t.Errorf("Expected 32MiB multipart threshold, got %d", cfg.MultipartThreshold)
	}
	if cfg.MultipartChunkSize != 16*1024*1024 {
		t.Errorf("Expected 16MiB chunk size, got %d", cfg.MultipartChunkSize)
	}
	if cfg.UploadConcurrency != 8 {
		t.Errorf("Expected concurrency 8, got %d", cfg.UploadConcurrency)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := &Config{Endpoint: "http://localhost:9000", ForcePathStyle: true}
	defaulted := cfg.withDefaults()

	if defaulted.Region == "" {
		t.Error("Expected region to be defaulted")
	}
	if defaulted.MultipartChunkSize <= 0 {
		t.Error("Expected chunk size to be defaulted")
	}
	if defaulted.UploadConcurrency <= 0 {
		t.Error("Expected concurrency to be defaulted")
	}
	if defaulted.Endpoint != "http://localhost:9000" {
		t.Errorf("Expected endpoint preserved, got %s", defaulted.Endpoint)
	}
	if !defaulted.ForcePathStyle {
		t.Error("Expected path style preserved")
	}
	if cfg.Region != "" {
		t.Error("Expected original config untouched")
	}
}

func TestClampInt32(t *testing.T) {
	if got := clampInt32(1000); got != 1000 {
		t.Errorf("Expected 1000, got %d", got)
	}
	if got := clampInt32(1 << 40); got != 0x7FFFFFFF {
		t.Errorf("Expected max int32, got %d", got)
	}
}
