// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/stacman/internal/domain"
)

// CatalogBrowser defines the primary port for reading the catalog tree.
type CatalogBrowser interface {
	// Catalog returns a snapshot of the root catalog.
	Catalog(ctx context.Context) (*domain.Catalog, error)

	// Collections returns the collections in insertion order.
	Collections(ctx context.Context) ([]*domain.Collection, error)

	// Collection returns a collection by ID.
	Collection(ctx context.Context, id string) (*domain.Collection, error)

	// Items returns the items of a collection in insertion order.
	Items(ctx context.Context, collectionID string) ([]*domain.Item, error)

	// Item returns a single item.
	Item(ctx context.Context, collectionID, itemID string) (*domain.Item, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy     bool              // Overall health status
	Ready       bool              // Ready to accept requests
	State       string            // Catalog state
	Collections int               // Number of collections
	Items       int               // Number of items
	Components  map[string]string // Component statuses
}
