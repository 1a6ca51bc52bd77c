// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"io"
)

// ObjectStorage defines the secondary port for object storage operations.
// Keys are slash separated and relative to the storage root.
type ObjectStorage interface {
	// List returns all objects whose extension is accepted by the storage's
	// filter.
	List(ctx context.Context) ([]StorageObject, error)

	// GetReader returns a reader for the given object.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes an object, replacing existing content.
	Put(ctx context.Context, key string, data []byte) error

	// Exists checks if an object exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Locator returns the address of key as understood by GDAL and as
	// written into asset hrefs (local path, s3://, az:// or https URL).
	Locator(key string) string
}

// StorageObject represents a file in object storage.
type StorageObject struct {
	Key          string // Object key/path
	Size         int64  // Size in bytes
	LastModified int64  // Unix timestamp
	ETag         string // Content hash
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
	StorageTypeHTTP  StorageType = "http"
	StorageTypeLocal StorageType = "local"
)

// Fetcher reads a whole document addressed by an absolute href.
type Fetcher interface {
	Fetch(ctx context.Context, href string) ([]byte, error)
}
