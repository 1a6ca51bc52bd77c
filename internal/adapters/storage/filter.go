// Package storage provides object storage adapters.
package storage

import (
	"path"
	"strings"

	"github.com/jobrunner/stacman/internal/domain"
)

// Filter decides which keys List reports.
type Filter struct {
	extensions map[string]struct{}
}

// NewFilter accepts keys whose lower-cased extension is one of exts.
// Without extensions every key is accepted.
func NewFilter(exts ...string) Filter {
	if len(exts) == 0 {
		return Filter{}
	}
	f := Filter{extensions: make(map[string]struct{}, len(exts))}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = struct{}{}
	}
	return f
}

// Accept reports whether key passes the filter. Hidden files never do.
func (f Filter) Accept(key string) bool {
	if strings.HasPrefix(path.Base(key), ".") {
		return false
	}
	if f.extensions == nil {
		return true
	}
	_, ok := f.extensions[domain.LocatorExtension(key)]
	return ok
}

func notFound(op, key string) error {
	return &domain.StorageError{Operation: op, Key: key, Err: domain.ErrObjectNotFound}
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix + "/"
	}
	return prefix + "/" + key
}

func relativeKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
}
