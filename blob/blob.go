// Package blob selects and connects the configured image storage backend.
package blob

import (
	"context"
	"fmt"
	"os"

	"github.com/mwrks/plume"
	"github.com/mwrks/plume/blob/filesystem"
	"github.com/mwrks/plume/blob/minio"
)

// Config holds the image storage settings.
type Config struct {
	Type string `mapstructure:"type" validate:"required,oneof=minio filesystem"`

	// MinIO settings.
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Type minio"`
	AccessKey string `mapstructure:"access_key" validate:"required_if=Type minio"`
	SecretKey string `mapstructure:"secret_key" validate:"required_if=Type minio"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Type minio"`
	UseSSL    bool   `mapstructure:"use_ssl"`

	// Filesystem settings.
	Path string `mapstructure:"path" validate:"required_if=Type filesystem"`

	// LegacyPrefixes lists direct-storage URL prefixes still present in old
	// post records. When set, the server rewrites matching image URLs to
	// proxy form at startup; once no posts match, the pass is a no-op.
	LegacyPrefixes []string `mapstructure:"legacy_prefixes"`
}

// Connect initializes the backend named by cfg.Type. The returned cleanup
// releases backend resources and is safe to call once.
func Connect(ctx context.Context, cfg Config) (plume.BlobStore, func(), error) {
	switch cfg.Type {
	case "minio":
		store, err := minio.Connect(ctx, minio.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("blob: %w", err)
		}
		return store, func() {}, nil
	case "filesystem":
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, nil, fmt.Errorf("blob: create root: %w", err)
		}
		root, err := os.OpenRoot(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("blob: open root: %w", err)
		}
		return filesystem.NewStore(root), func() { _ = root.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("blob: unsupported type %q", cfg.Type)
	}
}
