package stacjson

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// maxDepth bounds how far child links are followed.
const maxDepth = 16

// Reader reads foreign STAC catalogs for re-exposure. It implements
// output.CatalogReader.
type Reader struct {
	fetcher output.Fetcher
	logger  *slog.Logger
}

// NewReader creates a reader using fetcher for every document.
func NewReader(fetcher output.Fetcher, logger *slog.Logger) *Reader {
	return &Reader{fetcher: fetcher, logger: logger}
}

// ReadCatalog loads the catalog at href and pools the items of all child
// catalogs and collections. Relative hrefs are resolved against the
// document they appear in.
func (r *Reader) ReadCatalog(ctx context.Context, href string) (*output.NestedCatalog, error) {
	data, err := r.fetcher.Fetch(ctx, href)
	if err != nil {
		return nil, err
	}
	var root catalogDoc
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", href, err)
	}
	if root.Type != TypeCatalog && root.Type != TypeCollection {
		return nil, fmt.Errorf("%s has type %q: %w", href, root.Type, domain.ErrInvalidInput)
	}

	out := &output.NestedCatalog{
		ID:          root.ID,
		Title:       root.Title,
		Description: root.Description,
	}
	w := &walk{reader: r, visited: map[string]struct{}{href: {}}}
	if err := w.links(ctx, href, root.Links, 0, out); err != nil {
		return nil, err
	}
	r.logger.Debug("nested catalog read", "href", href, "items", len(out.Items))
	return out, nil
}

type walk struct {
	reader  *Reader
	visited map[string]struct{}
}

func (w *walk) links(ctx context.Context, base string, links []Link, depth int, out *output.NestedCatalog) error {
	if depth > maxDepth {
		return fmt.Errorf("%s: catalog nesting deeper than %d: %w", base, maxDepth, domain.ErrInvalidInput)
	}
	for _, link := range links {
		if link.Rel != RelChild && link.Rel != RelItem {
			continue
		}
		target := resolveHref(base, link.Href)
		if _, seen := w.visited[target]; seen {
			continue
		}
		w.visited[target] = struct{}{}

		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := w.reader.fetcher.Fetch(ctx, target)
		if err != nil {
			return err
		}

		var h header
		if err := json.Unmarshal(data, &h); err != nil {
			return fmt.Errorf("decoding %s: %w", target, err)
		}
		switch h.Type {
		case TypeCatalog, TypeCollection:
			if err := w.links(ctx, target, h.Links, depth+1, out); err != nil {
				return err
			}
		case TypeFeature:
			var doc itemDoc
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("decoding %s: %w", target, err)
			}
			item, err := decodeItem(doc, func(href string) string {
				return resolveHref(target, href)
			})
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
			out.Items = append(out.Items, item)
		default:
			w.reader.logger.Warn("skipping document of unknown type", "href", target, "type", h.Type)
		}
	}
	return nil
}
