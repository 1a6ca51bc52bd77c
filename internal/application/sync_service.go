package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/stacman/internal/ports/output"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// syncCooldown is the minimum time between two manually triggered syncs.
const syncCooldown = 30 * time.Second

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	Collection      string    `json:"collection"`
	ItemsAdded      int       `json:"items_added"`
	ItemsRemoved    int       `json:"items_removed"`
	ItemsFailed     int       `json:"items_failed"`
	ItemsTotal      int       `json:"items_total"`
	Saved           bool      `json:"saved"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService keeps one collection in step with a source storage, on a
// schedule and on demand. Changes are saved right away.
type SyncService struct {
	manager    *CatalogManager
	storage    output.ObjectStorage
	collection string
	interval   time.Duration
	logger     *slog.Logger

	// running serializes syncs; scheduled and manual runs never overlap.
	running sync.Mutex

	mu          sync.Mutex
	lastTrigger time.Time
	nextRun     time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewSyncService creates a new sync service.
func NewSyncService(
	manager *CatalogManager,
	storage output.ObjectStorage,
	collection string,
	interval time.Duration,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		manager:    manager,
		storage:    storage,
		collection: collection,
		interval:   interval,
		logger:     logger.With("collection", collection),
	}
}

// Start begins the periodic sync scheduler. It runs until ctx is done or
// Stop is called.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Info("starting sync service", "interval", s.interval)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel, s.done = cancel, done
	s.nextRun = time.Now().Add(s.interval)
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("sync service stopped")
				return
			case now := <-ticker.C:
				s.mu.Lock()
				s.nextRun = now.Add(s.interval)
				s.mu.Unlock()

				if _, err := s.RunOnce(ctx); err != nil {
					s.logger.Error("scheduled sync failed", "error", err)
				}
			}
		}
	}()
}

// Stop ends the scheduler and waits for a running sync to finish. It is a
// no-op when the scheduler is not running.
func (s *SyncService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	s.logger.Info("stopping sync service")
	cancel()
	<-done
}

// TriggerSync runs a sync on demand. Returns ErrRateLimited when called
// again within the cooldown.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if !s.lastTrigger.IsZero() && time.Since(s.lastTrigger) < syncCooldown {
		s.mu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastTrigger = time.Now()
	s.mu.Unlock()

	return s.RunOnce(ctx)
}

// RunOnce syncs and saves when anything changed.
func (s *SyncService) RunOnce(ctx context.Context) (SyncResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	stats, err := s.manager.SyncCollection(ctx, s.collection, s.storage)
	if err != nil {
		return SyncResult{}, err
	}

	s.mu.Lock()
	next := s.nextRun
	s.mu.Unlock()

	result := SyncResult{
		Collection:      s.collection,
		ItemsAdded:      stats.Added,
		ItemsRemoved:    stats.Removed,
		ItemsFailed:     stats.Failed,
		SyncedAt:        time.Now(),
		NextScheduledAt: next,
	}
	if items, err := s.manager.Items(ctx, s.collection); err == nil {
		result.ItemsTotal = len(items)
	}

	if stats.Added+stats.Removed == 0 {
		return result, nil
	}
	if err := s.manager.Save(ctx); err != nil {
		return result, err
	}
	result.Saved = true
	return result, nil
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
