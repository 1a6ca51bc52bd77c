package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// LocalStorage implements ObjectStorage for local filesystem.
type LocalStorage struct {
	basePath string
	filter   Filter
}

// NewLocalStorage creates a new local storage adapter. Relative base paths
// are made absolute so that locators stay valid after a chdir.
func NewLocalStorage(basePath string, filter Filter) *LocalStorage {
	if abs, err := filepath.Abs(basePath); err == nil {
		basePath = abs
	}
	return &LocalStorage{basePath: basePath, filter: filter}
}

// List returns all accepted files below the base directory.
func (s *LocalStorage) List(ctx context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(relPath)
		if !s.filter.Accept(key) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, output.StorageObject{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}

	return objects, nil
}

// GetReader returns a reader for the given object.
func (s *LocalStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.Locator(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound("get", key)
	}
	if err != nil {
		return nil, &domain.StorageError{Operation: "get", Key: key, Err: err}
	}
	return f, nil
}

// Put writes data through a temporary file that is renamed into place, so
// readers never see a partial document.
func (s *LocalStorage) Put(_ context.Context, key string, data []byte) error {
	dest := s.Locator(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".stacman-*")
	if err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	return nil
}

// Exists checks if a file exists.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.Locator(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Locator returns the full path for a key.
func (s *LocalStorage) Locator(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}
