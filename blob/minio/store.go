// Package minio stores images in an S3-compatible object store.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mwrks/plume"
)

// Objects never change after upload, so clients may cache them for a year.
const cacheControl = "public, max-age=31536000"

// Config holds the connection settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store provides object storage for uploaded images.
type Store struct {
	client *minio.Client
	bucket string
}

// Connect dials the object store and creates the bucket if it is missing.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connect: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *Store) Put(ctx context.Context, name, contentType string, size int64, content io.Reader) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, content, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	})
	if err != nil {
		return fmt.Errorf("minio put: %w", err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, name string) (plume.BlobInfo, io.ReadCloser, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return plume.BlobInfo{}, nil, mapError("minio stat", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return plume.BlobInfo{}, nil, mapError("minio get", err)
	}

	info := plume.BlobInfo{
		Name:        name,
		ContentType: stat.ContentType,
		Size:        stat.Size,
	}
	return info, obj, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	// StatObject first so a missing key surfaces as not found; RemoveObject
	// alone succeeds silently on absent objects.
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		return mapError("minio stat", err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove: %w", err)
	}
	return nil
}

func mapError(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == minio.NoSuchKey || errors.Is(err, plume.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, plume.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
