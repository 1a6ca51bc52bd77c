package application

import (
	"context"
	"strings"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Removed int
	Failed  int
}

// SyncCollection reconciles a collection with the objects in storage.
// Objects without an item are ingested; items whose data asset points into
// the storage but whose object vanished are removed. Items that did not
// come from the storage are left alone. Per-object failures are logged and
// counted, not returned.
func (m *CatalogManager) SyncCollection(ctx context.Context, collectionID string, storage output.ObjectStorage) (SyncStats, error) {
	m.logger.Info("syncing collection from storage", "collection", collectionID)

	if _, err := m.AddCollection(collectionID, collectionID, collectionID, nil); err != nil {
		return SyncStats{}, err
	}

	objects, err := storage.List(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	supported := make(map[string]struct{})
	for _, ext := range m.SupportedFormats() {
		supported[ext] = struct{}{}
	}

	// Build set of remote locators
	remote := make(map[string]struct{})
	for _, obj := range objects {
		locator := storage.Locator(obj.Key)
		if _, ok := supported[domain.LocatorExtension(locator)]; !ok {
			continue
		}
		remote[locator] = struct{}{}
	}

	current, err := m.Items(ctx, collectionID)
	if err != nil {
		return SyncStats{}, err
	}
	known := dataAssetIndex(current)

	stats := SyncStats{}

	// claimed maps item IDs to the remote object that holds them. Objects
	// sharing a file stem would replace each other's item on every run, so
	// the first one in locator order keeps the ID.
	claimed := make(map[string]string)
	for href, itemID := range known {
		if _, ok := remote[href]; ok {
			claimed[itemID] = href
		}
	}

	for _, locator := range sortedKeys(remote) {
		if _, ok := known[locator]; ok {
			m.logger.Debug("source already cataloged, skipping", "source", locator)
			continue
		}
		stem, hasStem := domain.FileStem(locator)
		if holder, taken := claimed[stem]; hasStem && taken {
			m.logger.Warn("item id already taken by another object, skipping",
				"source", locator, "item", stem, "holder", holder)
			continue
		}
		if _, err := m.AddItem(ctx, collectionID, locator, domain.ItemOverrides{}); err != nil {
			m.logger.Error("failed to ingest source", "source", locator, "error", err)
			stats.Failed++
			continue
		}
		if hasStem {
			claimed[stem] = locator
		}
		stats.Added++
	}

	prefix := storage.Locator("")
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	removed := make(map[string]struct{})
	for _, href := range sortedKeys(known) {
		itemID := known[href]
		if !strings.HasPrefix(href, prefix) {
			continue
		}
		if _, ok := remote[href]; ok {
			continue
		}
		if _, done := removed[itemID]; done {
			continue
		}
		removed[itemID] = struct{}{}
		m.logger.Info("removing item not in storage", "collection", collectionID, "item", itemID)
		if err := m.RemoveItem(collectionID, itemID); err != nil {
			m.logger.Warn("failed to remove item", "item", itemID, "error", err)
			continue
		}
		stats.Removed++
	}

	m.logger.Info("sync completed", "collection", collectionID,
		"added", stats.Added, "removed", stats.Removed, "failed", stats.Failed)
	return stats, nil
}
