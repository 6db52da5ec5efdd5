package storage

import (
	"context"
	"fmt"

	"mythweaver/api/internal/config"
)

// ImagePrefix is the path segment generated images live under, both on disk
// and in the bucket.
const ImagePrefix = "images"

// BlobStore persists one generated image per call and returns its public URI.
// Callers pass a fresh id each time; implementations never overwrite.
type BlobStore interface {
	Put(ctx context.Context, id string, data []byte) (string, error)
}

// NewBlobStore picks the strategy configured by storage.mode.
func NewBlobStore(cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Mode {
	case config.StorageModeLocal:
		return NewLocalStore(cfg.DataDir, cfg.PublicURL), nil
	case config.StorageModeRemote:
		return NewObjectStore(cfg)
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}
}
