package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrCatalogNotFound         = fmt.Errorf("catalog: %w", ErrNotFound)
	ErrCollectionNotFound      = fmt.Errorf("collection: %w", ErrNotFound)
	ErrItemNotFound            = fmt.Errorf("item: %w", ErrNotFound)
	ErrObjectNotFound          = fmt.Errorf("object: %w", ErrNotFound)
	ErrUnsupportedFormat       = fmt.Errorf("source format: %w", ErrUnsupported)
	ErrInvalidCatalogType      = fmt.Errorf("catalog type: %w", ErrInvalidInput)
	ErrAmbiguousCoordinateAxes = fmt.Errorf("coordinate axes: %w", ErrInvalidInput)
	ErrEmptyCatalog            = fmt.Errorf("catalog has no item geometry: %w", ErrInvalidInput)
	ErrInvalidBBox             = fmt.Errorf("bbox: %w", ErrInvalidInput)
	ErrReadOnlyStorage         = fmt.Errorf("storage is read-only: %w", ErrUnsupported)
	ErrBackendUnavailable      = fmt.Errorf("backend: %w", ErrUnavailable)
	ErrCatalogNotLoaded        = fmt.Errorf("catalog not loaded: %w", ErrUnavailable)
)

// UnsupportedFormatError is returned when no extraction strategy is
// registered for a source's extension.
type UnsupportedFormatError struct {
	Extension string   // Offending extension, including the dot
	Supported []string // Extensions that are registered
}

// Error implements the error interface.
func (e *UnsupportedFormatError) Error() string {
	ext := e.Extension
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Sprintf("unsupported file type %s, supported types: [%s]",
		ext, strings.Join(e.Supported, ", "))
}

// Unwrap returns the underlying error type.
func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// CollectionNotFoundError names the collection that could not be resolved.
type CollectionNotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %q not found", e.ID)
}

// Unwrap returns the underlying error type.
func (e *CollectionNotFoundError) Unwrap() error {
	return ErrCollectionNotFound
}

// ItemNotFoundError names the item and its collection.
type ItemNotFoundError struct {
	CollectionID string
	ID           string
}

// Error implements the error interface.
func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %q not found in collection %q", e.ID, e.CollectionID)
}

// Unwrap returns the underlying error type.
func (e *ItemNotFoundError) Unwrap() error {
	return ErrItemNotFound
}

// AmbiguousCoordinateAxesError is returned when an array dataset has no
// variable matching any latitude or longitude alias.
type AmbiguousCoordinateAxesError struct {
	Locator string   // Dataset that was inspected
	Missing []string // "latitude" and/or "longitude"
}

// Error implements the error interface.
func (e *AmbiguousCoordinateAxesError) Error() string {
	return fmt.Sprintf("could not find %s coordinate variables in %s",
		strings.Join(e.Missing, " and "), e.Locator)
}

// Unwrap returns the underlying error type.
func (e *AmbiguousCoordinateAxesError) Unwrap() error {
	return ErrAmbiguousCoordinateAxes
}

// InvalidCatalogTypeError is returned for an unknown on-disk layout mode.
type InvalidCatalogTypeError struct {
	Value string
}

// Error implements the error interface.
func (e *InvalidCatalogTypeError) Error() string {
	return fmt.Sprintf("invalid catalog type %q, expected one of [%s]",
		e.Value, strings.Join(CatalogTypeNames(), ", "))
}

// Unwrap returns the underlying error type.
func (e *InvalidCatalogTypeError) Unwrap() error {
	return ErrInvalidCatalogType
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (get, put, list, ...)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// BackendError wraps a failure of an external metadata backend.
type BackendError struct {
	Tool    string // e.g. gdalinfo
	Locator string // Source that was being described
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Tool, e.Locator, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// LoadError is returned by strict catalog loading when an existing catalog
// cannot be read.
type LoadError struct {
	Root string
	Err  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("loading catalog at %s: %v", e.Root, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
