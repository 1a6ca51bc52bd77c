package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jobrunner/stacman/internal/domain"
)

// Invalidator drops cached metadata for a locator.
type Invalidator interface {
	Invalidate(locator string)
}

// WatchService applies local source changes to one collection.
type WatchService struct {
	manager    *CatalogManager
	cache      Invalidator
	collection string
	autosave   bool
	logger     *slog.Logger

	// Serializes change handling so that saves see a settled tree.
	mu sync.Mutex
}

// NewWatchService creates a watch service. cache may be nil.
func NewWatchService(manager *CatalogManager, cache Invalidator, collection string, autosave bool, logger *slog.Logger) *WatchService {
	return &WatchService{
		manager:    manager,
		cache:      cache,
		collection: collection,
		autosave:   autosave,
		logger:     logger,
	}
}

// Prepare makes sure the target collection exists.
func (s *WatchService) Prepare() error {
	_, err := s.manager.AddCollection(s.collection, s.collection, s.collection, nil)
	return err
}

// SourceChanged re-extracts a created or modified source and replaces its
// item.
func (s *WatchService) SourceChanged(ctx context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil {
		s.cache.Invalidate(locator)
	}
	if _, err := s.manager.AddItem(ctx, s.collection, locator, domain.ItemOverrides{}); err != nil {
		return err
	}
	return s.save(ctx)
}

// SourceRemoved removes every item whose data asset points at locator.
func (s *WatchService) SourceRemoved(ctx context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil {
		s.cache.Invalidate(locator)
	}
	items, err := s.manager.Items(ctx, s.collection)
	if err != nil {
		return err
	}
	itemID, ok := dataAssetIndex(items)[locator]
	if !ok {
		s.logger.Debug("removed source was not cataloged", "source", locator)
		return nil
	}
	if err := s.manager.RemoveItem(s.collection, itemID); err != nil {
		return err
	}
	s.logger.Info("item removed with its source", "collection", s.collection, "item", itemID)
	return s.save(ctx)
}

func (s *WatchService) save(ctx context.Context) error {
	if !s.autosave {
		return nil
	}
	return s.manager.Save(ctx)
}

// dataAssetIndex maps the href of every data asset to its item ID.
func dataAssetIndex(items []*domain.Item) map[string]string {
	index := make(map[string]string)
	for _, item := range items {
		for _, a := range item.Assets {
			if a.HasRole("data") {
				index[a.Href] = item.ID
			}
		}
	}
	return index
}
