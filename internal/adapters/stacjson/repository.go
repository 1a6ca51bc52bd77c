package stacjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// Repository persists a catalog tree as linked STAC documents in an object
// storage:
//
//	catalog.json
//	<collection>/collection.json
//	<collection>/<item>/<item>.json
type Repository struct {
	storage output.ObjectStorage
	layout  domain.CatalogType
	now     func() time.Time
	logger  *slog.Logger
}

// NewRepository creates a repository writing the given layout.
func NewRepository(storage output.ObjectStorage, layout string, logger *slog.Logger) (*Repository, error) {
	ct, err := domain.ParseCatalogType(layout)
	if err != nil {
		return nil, err
	}
	return &Repository{
		storage: storage,
		layout:  ct,
		now:     time.Now,
		logger:  logger,
	}, nil
}

// Root implements output.CatalogRepository.
func (r *Repository) Root() string {
	return r.storage.Locator(rootKey)
}

// Layout returns the configured catalog type.
func (r *Repository) Layout() domain.CatalogType {
	return r.layout
}

// prefix is the locator of the storage root with a trailing slash.
func (r *Repository) prefix() string {
	return strings.TrimSuffix(r.storage.Locator(""), "/") + "/"
}

// Save implements output.CatalogRepository.
func (r *Repository) Save(ctx context.Context, catalog *domain.Catalog) error {
	docs, err := r.Render(catalog)
	if err != nil {
		return err
	}
	for _, key := range docs.Keys {
		if err := r.storage.Put(ctx, key, docs.Data[key]); err != nil {
			return err
		}
	}
	r.logger.Debug("catalog documents written", "root", r.Root(), "documents", len(docs.Keys))
	return nil
}

// Documents are rendered catalog files keyed by storage key. Keys lists
// them in write order (root first).
type Documents struct {
	Keys []string
	Data map[string][]byte
}

func (d *Documents) add(key string, v any) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	d.Keys = append(d.Keys, key)
	d.Data[key] = data
	return nil
}

// Render produces every document of the tree without writing them.
func (r *Repository) Render(catalog *domain.Catalog) (*Documents, error) {
	docs := &Documents{Data: make(map[string][]byte)}

	rootLinks := []Link{r.link(RelRoot, "", rootKey, domain.MediaJSON, catalog.Title)}
	for _, col := range catalog.Collections() {
		rootLinks = append(rootLinks, r.link(RelChild, "", collectionKey(col.ID), domain.MediaJSON, col.Title))
	}
	if r.layout != domain.CatalogSelfContained {
		rootLinks = append(rootLinks, r.selfLink(rootKey, domain.MediaJSON))
	}
	if err := docs.add(rootKey, newCatalogDoc(catalog, rootLinks)); err != nil {
		return nil, err
	}

	for _, col := range catalog.Collections() {
		colKey := collectionKey(col.ID)
		colDir := path.Dir(colKey)

		links := []Link{
			r.link(RelRoot, colDir, rootKey, domain.MediaJSON, catalog.Title),
			r.link(RelParent, colDir, rootKey, domain.MediaJSON, catalog.Title),
		}
		for _, item := range col.Items() {
			links = append(links, r.link(RelItem, colDir, itemKey(col.ID, item.ID), domain.MediaGeoJSON, ""))
		}
		if r.layout == domain.CatalogAbsolutePublished {
			links = append(links, r.selfLink(colKey, domain.MediaJSON))
		}
		if err := docs.add(colKey, newCollectionDoc(col, links)); err != nil {
			return nil, err
		}

		for _, item := range col.Items() {
			key := itemKey(col.ID, item.ID)
			dir := path.Dir(key)
			links := []Link{
				r.link(RelRoot, dir, rootKey, domain.MediaJSON, catalog.Title),
				r.link(RelParent, dir, colKey, domain.MediaJSON, col.Title),
				r.link(RelCollection, dir, colKey, domain.MediaJSON, col.Title),
			}
			if r.layout == domain.CatalogAbsolutePublished {
				links = append(links, r.selfLink(key, domain.MediaGeoJSON))
			}
			doc := newItemDoc(item, links, func(href string) string {
				return r.assetHref(dir, href)
			})
			if err := docs.add(key, doc); err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

// link builds a link from the document in fromDir to target, relative or
// absolute depending on the layout.
func (r *Repository) link(rel, fromDir, target string, mt domain.MediaType, title string) Link {
	href := relativeHref(fromDir, target)
	if r.layout == domain.CatalogAbsolutePublished {
		href = r.storage.Locator(target)
	}
	return Link{Rel: rel, Href: href, Type: string(mt), Title: title}
}

func (r *Repository) selfLink(key string, mt domain.MediaType) Link {
	return Link{Rel: RelSelf, Href: r.storage.Locator(key), Type: string(mt)}
}

// assetHref writes hrefs below the catalog root relative to the item
// unless the layout is absolute.
func (r *Repository) assetHref(itemDir, href string) string {
	if r.layout == domain.CatalogAbsolutePublished {
		return href
	}
	if key, ok := underPrefix(r.prefix(), href); ok {
		return relativeHref(itemDir, key)
	}
	return href
}

// Load implements output.CatalogRepository. Child and item links are
// followed; documents that cannot be reached are an error.
func (r *Repository) Load(ctx context.Context) (*domain.Catalog, error) {
	var root catalogDoc
	if err := r.read(ctx, rootKey, &root); err != nil {
		return nil, err
	}
	if root.Type != TypeCatalog {
		return nil, fmt.Errorf("%s has type %q: %w", rootKey, root.Type, domain.ErrInvalidInput)
	}

	catalog := domain.NewCatalog(root.ID, root.Title, root.Description)
	for _, link := range root.Links {
		if link.Rel != RelChild {
			continue
		}
		key, err := r.linkKey("", link.Href)
		if err != nil {
			return nil, err
		}
		col, err := r.loadCollection(ctx, key)
		if err != nil {
			return nil, err
		}
		if col == nil {
			continue
		}
		if !catalog.AddCollection(col) {
			r.logger.Warn("duplicate collection link ignored", "collection", col.ID)
		}
	}
	return catalog, nil
}

func (r *Repository) loadCollection(ctx context.Context, key string) (*domain.Collection, error) {
	var doc collectionDoc
	if err := r.read(ctx, key, &doc); err != nil {
		return nil, err
	}
	if doc.Type != TypeCollection {
		r.logger.Warn("child is not a collection, skipping", "key", key, "type", doc.Type)
		return nil, nil
	}

	extent, err := decodeExtent(doc.Extent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	col := domain.NewCollection(doc.ID, doc.Title, doc.Description, &extent, r.now())
	if doc.License != "" {
		col.License = doc.License
	}

	dir := path.Dir(key)
	for _, link := range doc.Links {
		if link.Rel != RelItem {
			continue
		}
		itemKey, err := r.linkKey(dir, link.Href)
		if err != nil {
			return nil, err
		}
		var idoc itemDoc
		if err := r.read(ctx, itemKey, &idoc); err != nil {
			return nil, err
		}
		itemDir := path.Dir(itemKey)
		item, err := decodeItem(idoc, func(href string) string {
			return r.resolveAsset(itemDir, href)
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", itemKey, err)
		}
		col.PutItem(item)
	}

	// A populated collection's stored extent is derived from its items;
	// once they are gone it falls back to the default.
	if col.ItemCount() > 0 {
		col.SetBaseExtent(domain.DefaultExtent(r.now()))
	}
	return col, nil
}

// linkKey maps a link href found in the document in dir to a storage key.
func (r *Repository) linkKey(dir, href string) (string, error) {
	if !isAbsoluteHref(href) {
		return resolveKey(dir, href), nil
	}
	if key, ok := underPrefix(r.prefix(), href); ok {
		return key, nil
	}
	return "", fmt.Errorf("link %q points outside %s: %w", href, r.prefix(), domain.ErrInvalidInput)
}

func (r *Repository) resolveAsset(itemDir, href string) string {
	if isAbsoluteHref(href) {
		return href
	}
	return r.storage.Locator(resolveKey(itemDir, href))
}

func (r *Repository) read(ctx context.Context, key string, v any) error {
	rc, err := r.storage.GetReader(ctx, key)
	if err != nil {
		if key == rootKey && errors.Is(err, domain.ErrObjectNotFound) {
			return fmt.Errorf("%s: %w", r.Root(), domain.ErrCatalogNotFound)
		}
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return &domain.StorageError{Operation: "read", Key: key, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}
