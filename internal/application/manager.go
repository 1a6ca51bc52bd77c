package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// ManagerOptions configure a CatalogManager. Empty strings keep the loaded
// values (or the defaults for a new catalog).
type ManagerOptions struct {
	ID          string
	Title       string
	Description string
	// StrictLoad turns unreadable or corrupt catalogs into errors instead
	// of replacing them with a fresh root.
	StrictLoad bool
	Clock      func() time.Time

	// createID names a freshly created catalog when ID is empty.
	createID string
}

// ItemFilter selects items for bulk operations. A nil filter selects all.
type ItemFilter func(*domain.Item) bool

// CatalogManager owns the catalog tree.
type CatalogManager struct {
	mu        sync.RWMutex
	catalog   *domain.Catalog
	state     domain.CatalogState
	repo      output.CatalogRepository
	extractor MetadataSource
	builder   *ItemBuilder
	metrics   output.MetricsCollector
	logger    *slog.Logger
	opts      ManagerOptions
}

// NewCatalogManager creates a manager. The tree is not available until
// LoadOrCreate has run.
func NewCatalogManager(
	repo output.CatalogRepository,
	extractor MetadataSource,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	opts ManagerOptions,
) *CatalogManager {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &CatalogManager{
		repo:      repo,
		extractor: extractor,
		builder:   NewItemBuilder(opts.Clock),
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// LoadOrCreate reads the persisted tree. Any failure falls back to a fresh
// root catalog unless StrictLoad is set and the catalog exists but cannot
// be read.
func (m *CatalogManager) LoadOrCreate(ctx context.Context) error {
	m.logger.Info("loading catalog", "root", m.repo.Root())

	cat, err := m.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCatalogNotFound) {
			m.logger.Info("no catalog found, creating a new one", "root", m.repo.Root())
		} else {
			if m.opts.StrictLoad {
				return &domain.LoadError{Root: m.repo.Root(), Err: err}
			}
			m.logger.Warn("catalog could not be loaded, creating a new one",
				"root", m.repo.Root(), "error", err)
		}
		cat = domain.NewCatalog(
			firstNonEmpty(m.opts.ID, m.opts.createID, domain.DefaultCatalogID),
			firstNonEmpty(m.opts.Title, domain.DefaultCatalogTitle),
			firstNonEmpty(m.opts.Description, domain.DefaultCatalogDescription),
		)
	}

	if m.opts.ID != "" {
		cat.ID = m.opts.ID
	}
	if m.opts.Title != "" {
		cat.Title = m.opts.Title
	}
	if m.opts.Description != "" {
		cat.Description = m.opts.Description
	}

	m.mu.Lock()
	m.catalog = cat
	m.state = domain.StateLoaded
	m.mu.Unlock()

	m.updateMetrics()
	m.logger.Info("catalog ready", "id", cat.ID,
		"collections", cat.CollectionCount(), "items", cat.ItemCount())
	return nil
}

// State returns the lifecycle state of the tree.
func (m *CatalogManager) State() domain.CatalogState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Root returns where the catalog is persisted.
func (m *CatalogManager) Root() string {
	return m.repo.Root()
}

// SupportedFormats returns the extensions that can be ingested.
func (m *CatalogManager) SupportedFormats() []string {
	return m.extractor.SupportedExtensions()
}

// AddCollection attaches a new collection. It is a no-op when a collection
// with the same ID exists; the return value reports whether one was added.
func (m *CatalogManager) AddCollection(id, title, description string, extent *domain.Extent) (bool, error) {
	if err := domain.ValidateID("collection", id); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return false, err
	}

	col := domain.NewCollection(id, title, description, extent, m.opts.Clock())
	if !m.catalog.AddCollection(col) {
		m.logger.Debug("collection exists, skipping", "collection", id)
		return false, nil
	}
	m.markDirty("add_collection")
	m.logger.Info("collection added", "collection", id)
	return true, nil
}

// AddItem extracts metadata from locator, builds an item and inserts it
// into the collection. An existing item with the same ID is replaced.
// Relative local paths are made absolute first so asset hrefs survive a
// save and reload.
func (m *CatalogManager) AddItem(ctx context.Context, collectionID, locator string, ov domain.ItemOverrides) (*domain.Item, error) {
	locator, err := domain.AbsLocator(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	m.mu.RLock()
	err = m.ready()
	if err == nil {
		_, err = m.collection(collectionID)
	}
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	m.logger.Info("adding item", "collection", collectionID, "source", locator)

	// Extraction runs without the lock; it may spawn external tools.
	md, err := m.extractor.Extract(ctx, locator)
	if err != nil {
		m.logger.Error("failed to extract metadata", "source", locator, "error", err)
		return nil, err
	}
	item, err := m.builder.Build(domain.SourceRef{Locator: locator, Kind: md.Kind}, md, ov)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	col, err := m.collection(collectionID)
	if err != nil {
		return nil, err
	}
	if _, exists := col.Item(item.ID); exists {
		m.logger.Warn("replacing existing item", "collection", collectionID, "item", item.ID)
	}
	col.PutItem(item)
	col.RecomputeExtent()
	m.markDirty("add_item")

	m.logger.Info("item added", "collection", collectionID, "item", item.ID, "assets", len(item.Assets))
	return item.Clone(), nil
}

// RemoveItem deletes an item and recomputes the collection extent.
func (m *CatalogManager) RemoveItem(collectionID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}

	col, err := m.collection(collectionID)
	if err != nil {
		return err
	}
	if !col.RemoveItem(itemID) {
		return &domain.ItemNotFoundError{CollectionID: collectionID, ID: itemID}
	}
	col.RecomputeExtent()
	m.markDirty("remove_item")

	m.logger.Info("item removed", "collection", collectionID, "item", itemID)
	return nil
}

// RemoveCollection detaches a collection and all of its items.
func (m *CatalogManager) RemoveCollection(collectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}

	if !m.catalog.RemoveCollection(collectionID) {
		return &domain.CollectionNotFoundError{ID: collectionID}
	}
	m.markDirty("remove_collection")

	m.logger.Info("collection removed", "collection", collectionID)
	return nil
}

// UpdateItemProperties merges props into an item's properties.
func (m *CatalogManager) UpdateItemProperties(collectionID, itemID string, props domain.Properties) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.item(collectionID, itemID)
	if err != nil {
		return err
	}
	if item.Properties == nil {
		item.Properties = domain.Properties{}
	}
	item.Properties.Merge(props)
	m.markDirty("update_item_properties")
	return nil
}

// RemoveItemProperties deletes keys from an item's properties. Unknown
// keys are ignored.
func (m *CatalogManager) RemoveItemProperties(collectionID, itemID string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.item(collectionID, itemID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(item.Properties, k)
	}
	m.markDirty("remove_item_properties")
	return nil
}

// UpdateCollectionItemsProperties merges props into every item selected by
// filter and returns how many were updated.
func (m *CatalogManager) UpdateCollectionItemsProperties(collectionID string, props domain.Properties, filter ItemFilter) (int, error) {
	return m.eachItem(collectionID, filter, "update_items_properties", func(item *domain.Item) {
		item.Properties.Merge(props)
	})
}

// RemoveCollectionItemsProperties deletes keys from every item selected by
// filter and returns how many were visited.
func (m *CatalogManager) RemoveCollectionItemsProperties(collectionID string, keys []string, filter ItemFilter) (int, error) {
	return m.eachItem(collectionID, filter, "remove_items_properties", func(item *domain.Item) {
		for _, k := range keys {
			delete(item.Properties, k)
		}
	})
}

func (m *CatalogManager) eachItem(collectionID string, filter ItemFilter, op string, fn func(*domain.Item)) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return 0, err
	}

	col, err := m.collection(collectionID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range col.Items() {
		if filter != nil && !filter(item) {
			continue
		}
		if item.Properties == nil {
			item.Properties = domain.Properties{}
		}
		fn(item)
		n++
	}
	if n > 0 {
		m.markDirty(op)
	}
	return n, nil
}

// Save recomputes every collection extent and persists the tree.
func (m *CatalogManager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}

	for _, col := range m.catalog.Collections() {
		col.RecomputeExtent()
	}

	start := time.Now()
	err := m.repo.Save(ctx, m.catalog)
	m.metrics.ObserveSaveDuration(time.Since(start))
	m.metrics.IncSaves(err == nil)
	if err != nil {
		m.logger.Error("failed to save catalog", "root", m.repo.Root(), "error", err)
		return err
	}

	m.state = domain.StateSaved
	m.logger.Info("catalog saved", "root", m.repo.Root(),
		"collections", m.catalog.CollectionCount(), "items", m.catalog.ItemCount())
	return nil
}

// Catalog returns a deep copy of the tree.
func (m *CatalogManager) Catalog(_ context.Context) (*domain.Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.catalog.Clone(), nil
}

// Collections returns copies of all collections in insertion order.
func (m *CatalogManager) Collections(_ context.Context) ([]*domain.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	cols := m.catalog.Collections()
	out := make([]*domain.Collection, len(cols))
	for i, col := range cols {
		out[i] = col.Clone()
	}
	return out, nil
}

// Collection returns a copy of one collection.
func (m *CatalogManager) Collection(_ context.Context, id string) (*domain.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	col, err := m.collection(id)
	if err != nil {
		return nil, err
	}
	return col.Clone(), nil
}

// Items returns copies of a collection's items in insertion order.
func (m *CatalogManager) Items(_ context.Context, collectionID string) ([]*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	col, err := m.collection(collectionID)
	if err != nil {
		return nil, err
	}
	items := col.Items()
	out := make([]*domain.Item, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out, nil
}

// Item returns a copy of one item.
func (m *CatalogManager) Item(_ context.Context, collectionID, itemID string) (*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, err := m.item(collectionID, itemID)
	if err != nil {
		return nil, err
	}
	return item.Clone(), nil
}

// Describe writes an indented outline of the tree.
func (m *CatalogManager) Describe(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "* <Catalog id=%s>\n", m.catalog.ID); err != nil {
		return err
	}
	for _, col := range m.catalog.Collections() {
		if _, err := fmt.Fprintf(w, "    * <Collection id=%s>\n", col.ID); err != nil {
			return err
		}
		for _, item := range col.Items() {
			if _, err := fmt.Fprintf(w, "      * <Item id=%s>\n", item.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Counts returns the number of collections and items.
func (m *CatalogManager) Counts() (collections, items int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.catalog == nil {
		return 0, 0
	}
	return m.catalog.CollectionCount(), m.catalog.ItemCount()
}

// clear drops every collection. Used when a catalog is removed from a
// workspace.
func (m *CatalogManager) clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}
	for _, col := range m.catalog.Collections() {
		m.catalog.RemoveCollection(col.ID)
	}
	m.markDirty("clear")
	return nil
}

// ready must be called with the lock held.
func (m *CatalogManager) ready() error {
	if m.catalog == nil || m.state == domain.StateUninitialized {
		return domain.ErrCatalogNotLoaded
	}
	return nil
}

func (m *CatalogManager) collection(id string) (*domain.Collection, error) {
	if m.catalog == nil {
		return nil, domain.ErrCatalogNotLoaded
	}
	col, ok := m.catalog.Collection(id)
	if !ok {
		return nil, &domain.CollectionNotFoundError{ID: id}
	}
	return col, nil
}

func (m *CatalogManager) item(collectionID, itemID string) (*domain.Item, error) {
	col, err := m.collection(collectionID)
	if err != nil {
		return nil, err
	}
	item, ok := col.Item(itemID)
	if !ok {
		return nil, &domain.ItemNotFoundError{CollectionID: collectionID, ID: itemID}
	}
	return item, nil
}

// markDirty must be called with the write lock held.
func (m *CatalogManager) markDirty(op string) {
	m.state = domain.StateDirty
	m.metrics.IncMutations(op)
	m.metrics.SetCatalogSize(m.catalog.CollectionCount(), m.catalog.ItemCount())
}

func (m *CatalogManager) updateMetrics() {
	collections, items := m.Counts()
	m.metrics.SetCatalogSize(collections, items)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
