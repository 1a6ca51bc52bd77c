package stacjson

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Object keys of the persisted layout.
const rootKey = "catalog.json"

func collectionKey(collectionID string) string {
	return path.Join(collectionID, "collection.json")
}

func itemKey(collectionID, itemID string) string {
	return path.Join(collectionID, itemID, itemID+".json")
}

// relativeHref returns the slash path from the directory fromDir to toKey,
// prefixed with "./" when it does not climb.
func relativeHref(fromDir, toKey string) string {
	from := splitKey(fromDir)
	to := splitKey(toKey)

	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}

	var parts []string
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	rel := strings.Join(parts, "/")
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}

// resolveKey resolves a relative href against the directory of a key.
func resolveKey(fromDir, href string) string {
	return strings.TrimPrefix(path.Clean(path.Join(fromDir, href)), "/")
}

func splitKey(key string) []string {
	key = strings.Trim(path.Clean("/"+key), "/")
	if key == "" {
		return nil
	}
	return strings.Split(key, "/")
}

func isAbsoluteHref(href string) bool {
	return strings.Contains(href, "://") || strings.HasPrefix(href, "/") || filepath.IsAbs(href)
}

// resolveHref resolves ref against the document at base. base is either a
// URL or a local file path.
func resolveHref(base, ref string) string {
	if strings.Contains(ref, "://") {
		return ref
	}
	if strings.Contains(base, "://") {
		b, err := url.Parse(base)
		if err != nil {
			return ref
		}
		r, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return b.ResolveReference(r).String()
	}
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(ref))
}

// underPrefix returns the key of locator below prefix.
func underPrefix(prefix, locator string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(locator, prefix) {
		return "", false
	}
	return strings.TrimPrefix(locator, prefix), true
}
