package application

import (
	"context"

	"github.com/jobrunner/stacman/internal/domain"
)

// IngestFailure records one source that could not be cataloged.
type IngestFailure struct {
	Collection string
	Source     string
	Err        error
}

// IngestResult summarizes an Ingest run.
type IngestResult struct {
	CollectionsAdded int
	ItemsAdded       int
	Failures         []IngestFailure
}

// Ingest applies a plan. Collection errors abort the run; item errors are
// collected and the remaining sources are still processed. Nothing is
// saved.
func (m *CatalogManager) Ingest(ctx context.Context, plan domain.IngestPlan) (IngestResult, error) {
	var res IngestResult

	if err := m.Rename(plan.Catalog.ID, plan.Catalog.Title, plan.Catalog.Description); err != nil {
		return res, err
	}

	m.logger.Info("ingesting plan",
		"collections", len(plan.Collections), "items", plan.ItemCount())

	for _, cp := range plan.Collections {
		added, err := m.AddCollection(cp.ID, firstNonEmpty(cp.Title, cp.ID), firstNonEmpty(cp.Description, cp.ID), cp.Extent)
		if err != nil {
			return res, err
		}
		if added {
			res.CollectionsAdded++
		}

		for _, ip := range cp.Items {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if _, err := m.AddItem(ctx, cp.ID, ip.Source, ip.Overrides); err != nil {
				res.Failures = append(res.Failures, IngestFailure{Collection: cp.ID, Source: ip.Source, Err: err})
				continue
			}
			res.ItemsAdded++
		}
	}

	m.logger.Info("ingest completed", "collections_added", res.CollectionsAdded,
		"items_added", res.ItemsAdded, "failed", len(res.Failures))
	return res, nil
}

// Rename sets the root catalog's ID, title and description. Empty values
// leave the current ones in place.
func (m *CatalogManager) Rename(id, title, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}

	changed := false
	apply := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	apply(&m.catalog.ID, id)
	apply(&m.catalog.Title, title)
	apply(&m.catalog.Description, description)
	if changed {
		m.markDirty("rename")
	}
	return nil
}
