// Package filesystem stores images on local disk. Writes are atomic using
// temp files, and the root sandbox prevents path traversal.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mwrks/plume"
)

// Store provides file system storage for uploaded images.
type Store struct {
	root *os.Root
}

// NewStore creates a Store rooted at the given directory. The root provides
// sandboxed file operations preventing path traversal.
func NewStore(root *os.Root) *Store {
	return &Store{root: root}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Put atomically writes content using a temp file and rename. The content
// type is not persisted; reads derive it from the file extension.
func (s *Store) Put(ctx context.Context, name, _ string, _ int64, content io.Reader) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(t.Name()); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	if _, err := io.Copy(t, &ctxReader{ctx: ctx, r: content}); err != nil {
		return fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return fmt.Errorf("could not sync written file: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, name); renameErr != nil {
		return fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true
	return nil
}

// Open opens a stored image for reading. Returns plume.ErrNotFound if the
// file does not exist.
func (s *Store) Open(ctx context.Context, name string) (plume.BlobInfo, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return plume.BlobInfo{}, nil, err
	}

	f, err := s.root.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return plume.BlobInfo{}, nil, plume.ErrNotFound
		}
		return plume.BlobInfo{}, nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return plume.BlobInfo{}, nil, fmt.Errorf("failed to stat file: %w", err)
	}

	info := plume.BlobInfo{
		Name:        name,
		ContentType: contentTypeFor(name),
		Size:        stat.Size(),
	}
	return info, f, nil
}

// Delete removes a stored image. Returns plume.ErrNotFound if the file does
// not exist.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return plume.ErrNotFound
		}
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func tmpFileName() string {
	return fmt.Sprintf(".tmp-%s", uuid.NewString())
}
