package application

import (
	"context"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	manager *CatalogManager
}

// NewHealthService creates a new health service.
func NewHealthService(manager *CatalogManager) *HealthService {
	return &HealthService{
		manager: manager,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true // Basic health check
}

// IsReady returns true once the catalog tree has been loaded.
func (s *HealthService) IsReady(_ context.Context) bool {
	return s.manager.State() != domain.StateUninitialized
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	state := s.manager.State()
	collections, items := s.manager.Counts()

	components := map[string]string{
		"catalog": "ok",
	}
	if state == domain.StateUninitialized {
		components["catalog"] = "not loaded"
	}

	return input.HealthDetails{
		Healthy:     s.IsHealthy(ctx),
		Ready:       s.IsReady(ctx),
		State:       state.String(),
		Collections: collections,
		Items:       items,
		Components:  components,
	}
}
