package storage

import (
	"context"
	"testing"

	"github.com/bucketfs/bucketfs/internal/config"
	"github.com/bucketfs/bucketfs/internal/storage/memory"
)

func TestNewMemoryDriver(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Bucket = "test"
	cfg.Store.Driver = "memory"

	store, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Failed to construct memory store: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("Expected *memory.Store, got %T", store)
	}
}

func TestNewUnknownDriver(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Bucket = "test"
	cfg.Store.Driver = "carrier-pigeon"

	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
