package storage

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a storage backend.
type Config struct {
	Type StorageType

	// S3-compatible backends
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	PublicURL string // Public URL prefix for R2.dev, custom CDN or the local file server

	// Local backend
	LocalDir string
}

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage configuration.
// Returns:
//   - ObjectStorage: initialized storage implementation.
//   - error: non-nil if the backend cannot be created.
func NewStorage(cfg *Config) (ObjectStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	// Auto-detect storage type if not specified
	if cfg.Type == "" {
		cfg.Type = detectStorageType(cfg.Endpoint)
	}

	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalDir, cfg.PublicURL)
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// Prepare readies a backend for uploads, creating its bucket when the backend has one.
func Prepare(ctx context.Context, s ObjectStorage) error {
	if e, ok := s.(BucketEnsurer); ok {
		return e.EnsureBucket(ctx)
	}
	return nil
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "":
		return StorageTypeLocal
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
