package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/ports"
)

// FilesystemStore keeps blobs under a root directory, one file per key.
// PresignGet returns a path under publicBase that the HTTP API serves.
type FilesystemStore struct {
	root       string
	publicBase string
}

var _ ports.BlobStore = (*FilesystemStore)(nil)

func NewFilesystemStore(root string, publicBase string) *FilesystemStore {
	return &FilesystemStore{root: root, publicBase: strings.TrimRight(publicBase, "/")}
}

func (s *FilesystemStore) Put(ctx context.Context, key string, body io.Reader, size int64, _ string) error {
	target, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}
	if body == nil {
		return errors.New("body is required")
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errs.Wrapf(err, "create blob directory for %q", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return errs.Wrap(err, "create temp blob")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errs.Wrapf(err, "write blob %q", key)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("write blob %q: wrote %d bytes, want %d", key, written, size)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return errs.Wrapf(err, "commit blob %q", key)
	}
	return nil
}

func (s *FilesystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	target, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", compliance.ErrBlobNotFound, key)
		}
		return nil, errs.Wrapf(err, "read blob %q", key)
	}
	return data, nil
}

func (s *FilesystemStore) PresignGet(ctx context.Context, key string, _ time.Duration) (string, error) {
	if _, err := s.resolve(ctx, key); err != nil {
		return "", err
	}
	escaped := (&url.URL{Path: cleanKey(key)}).EscapedPath()
	return s.publicBase + "/" + escaped, nil
}

func (s *FilesystemStore) resolve(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cleaned := cleanKey(key)
	if cleaned == "" {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
}
