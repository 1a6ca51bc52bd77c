package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncExtractions counts one extraction for a source kind.
	IncExtractions(kind string, success bool)

	// ObserveExtractionDuration records extraction duration.
	ObserveExtractionDuration(kind string, duration time.Duration)

	// IncCacheLookups counts metadata cache hits and misses.
	IncCacheLookups(hit bool)

	// IncMutations counts tree mutations by operation name.
	IncMutations(operation string)

	// SetCatalogSize sets the number of collections and items.
	SetCatalogSize(collections, items int)

	// IncSaves counts catalog saves.
	IncSaves(success bool)

	// ObserveSaveDuration records save duration.
	ObserveSaveDuration(duration time.Duration)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncExtractions implements MetricsCollector.
func (n *NoOpMetrics) IncExtractions(_ string, _ bool) {}

// ObserveExtractionDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveExtractionDuration(_ string, _ time.Duration) {}

// IncCacheLookups implements MetricsCollector.
func (n *NoOpMetrics) IncCacheLookups(_ bool) {}

// IncMutations implements MetricsCollector.
func (n *NoOpMetrics) IncMutations(_ string) {}

// SetCatalogSize implements MetricsCollector.
func (n *NoOpMetrics) SetCatalogSize(_, _ int) {}

// IncSaves implements MetricsCollector.
func (n *NoOpMetrics) IncSaves(_ bool) {}

// ObserveSaveDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveSaveDuration(_ time.Duration) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
