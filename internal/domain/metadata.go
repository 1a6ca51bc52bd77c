package domain

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// SourceKind classifies a source for extraction.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceRaster
	SourceMosaic
	SourceArray
	SourceNestedCatalog
	SourceVector
)

// String returns a string representation of the kind.
func (k SourceKind) String() string {
	switch k {
	case SourceRaster:
		return "raster"
	case SourceMosaic:
		return "mosaic"
	case SourceArray:
		return "array"
	case SourceNestedCatalog:
		return "nested-catalog"
	case SourceVector:
		return "vector"
	default:
		return "unknown"
	}
}

// SourceRef is a locator plus its inferred kind.
type SourceRef struct {
	Locator string
	Kind    SourceKind
}

// Extension returns the locator's lower-cased extension including the dot.
// For URLs only the path is considered, so query strings are ignored.
func (s SourceRef) Extension() string {
	return LocatorExtension(s.Locator)
}

// Stem returns the locator's file stem, or false when none can be derived.
func (s SourceRef) Stem() (string, bool) {
	return FileStem(s.Locator)
}

// Metadata is the normalized record produced by one extraction. It is not
// modified after it is returned.
type Metadata struct {
	Kind       SourceKind
	Locator    string
	ID         string // Nested catalogs only
	BBox       BBox
	Footprint  orb.Geometry
	MediaType  MediaType
	Properties Properties
	Extensions []string
	SubSources []SourceRef // Mosaics only
	SubItems   []*Item     // Nested catalogs only
}

// ItemOverrides carries caller supplied values that take precedence over
// extracted ones.
type ItemOverrides struct {
	ID         string
	Datetime   *time.Time
	Start      *time.Time
	End        *time.Time
	Properties Properties
}

// HasTime reports whether the overrides fix the item timestamp.
func (o ItemOverrides) HasTime() bool {
	return o.Datetime != nil || o.Start != nil || o.End != nil
}

// locatorPath strips scheme, host and query from URLs.
func locatorPath(locator string) string {
	if strings.Contains(locator, "://") {
		if u, err := url.Parse(locator); err == nil {
			return u.Path
		}
	}
	return strings.ReplaceAll(locator, "\\", "/")
}

// AbsLocator makes a relative local path absolute against the working
// directory. URLs, GDAL virtual paths and absolute paths are returned as is.
func AbsLocator(locator string) (string, error) {
	if locator == "" || strings.Contains(locator, "://") || filepath.IsAbs(locator) || strings.HasPrefix(locator, "/") {
		return locator, nil
	}
	abs, err := filepath.Abs(locator)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", locator, err)
	}
	return abs, nil
}

// LocatorBase returns the last path element of a locator.
func LocatorBase(locator string) string {
	p := strings.TrimRight(locatorPath(locator), "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// LocatorExtension returns the lower-cased extension of a locator.
func LocatorExtension(locator string) string {
	base := LocatorBase(locator)
	return strings.ToLower(path.Ext(base))
}

// FileStem returns the base name up to its first dot. It fails for
// locators whose base name is empty or starts with a dot.
func FileStem(locator string) (string, bool) {
	base := LocatorBase(locator)
	if base == "" || base == "." || base == "/" {
		return "", false
	}
	stem, _, _ := strings.Cut(base, ".")
	if stem == "" {
		return "", false
	}
	return stem, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
