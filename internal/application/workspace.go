package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// Workspace holds several independently persisted catalogs.
type Workspace struct {
	mu        sync.RWMutex
	managers  map[string]*CatalogManager
	extractor MetadataSource
	metrics   output.MetricsCollector
	logger    *slog.Logger
	opts      ManagerOptions
}

// NewWorkspace creates an empty workspace. Every catalog opened in it
// shares the extractor and the clock of opts.
func NewWorkspace(extractor MetadataSource, metrics output.MetricsCollector, logger *slog.Logger, opts ManagerOptions) *Workspace {
	return &Workspace{
		managers:  make(map[string]*CatalogManager),
		extractor: extractor,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// Open loads (or creates) the catalog stored in repo and registers it
// under id, which also becomes the catalog ID. An empty id registers the
// catalog under the next free "root-catalog-N"; a loaded catalog then
// keeps its own ID and a new one is named after the key.
func (w *Workspace) Open(ctx context.Context, id string, repo output.CatalogRepository) (*CatalogManager, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	opts := w.opts
	if id == "" {
		id = w.nextID()
		opts.createID = id
	} else {
		opts.ID = id
	}
	if _, exists := w.managers[id]; exists {
		return nil, fmt.Errorf("catalog %q is already open: %w", id, domain.ErrInvalidInput)
	}

	m := NewCatalogManager(repo, w.extractor, w.metrics, w.logger.With("catalog", id), opts)
	if err := m.LoadOrCreate(ctx); err != nil {
		return nil, err
	}
	w.managers[id] = m
	return m, nil
}

func (w *Workspace) nextID() string {
	for n := 1; ; n++ {
		id := fmt.Sprintf("%s-%d", domain.DefaultCatalogID, n)
		if _, taken := w.managers[id]; !taken {
			return id
		}
	}
}

// Get returns the catalog registered under id.
func (w *Workspace) Get(id string) (*CatalogManager, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	m, ok := w.managers[id]
	if !ok {
		return nil, fmt.Errorf("catalog %q: %w", id, domain.ErrCatalogNotFound)
	}
	return m, nil
}

// List returns the IDs of all open catalogs, sorted.
func (w *Workspace) List() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]string, 0, len(w.managers))
	for id := range w.managers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove empties the catalog, persists the empty tree and forgets it.
func (w *Workspace) Remove(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, ok := w.managers[id]
	if !ok {
		return fmt.Errorf("catalog %q: %w", id, domain.ErrCatalogNotFound)
	}
	if err := m.clear(); err != nil {
		return err
	}
	if err := m.Save(ctx); err != nil {
		return err
	}
	delete(w.managers, id)
	w.logger.Info("catalog removed from workspace", "catalog", id)
	return nil
}

// SaveAll saves every open catalog. All catalogs are attempted; the
// failures are joined.
func (w *Workspace) SaveAll(ctx context.Context) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var errs []error
	for _, id := range sortedKeys(w.managers) {
		if err := w.managers[id].Save(ctx); err != nil {
			errs = append(errs, fmt.Errorf("saving catalog %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
