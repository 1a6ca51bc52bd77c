package application

import (
	"context"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// CachedExtractor memoizes successful extractions per locator. Cached
// records are shared and must be treated as read-only.
type CachedExtractor struct {
	next    MetadataSource
	cache   *lru.Cache[uint64, *domain.Metadata]
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewCachedExtractor wraps next with an LRU of the given size.
func NewCachedExtractor(next MetadataSource, size int, metrics output.MetricsCollector, logger *slog.Logger) (*CachedExtractor, error) {
	cache, err := lru.New[uint64, *domain.Metadata](size)
	if err != nil {
		return nil, err
	}
	return &CachedExtractor{
		next:    next,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}, nil
}

func cacheKey(locator string) uint64 {
	return xxhash.Sum64String(locator)
}

// Extract implements MetadataSource.
func (c *CachedExtractor) Extract(ctx context.Context, locator string) (*domain.Metadata, error) {
	key := cacheKey(locator)
	if md, ok := c.cache.Get(key); ok && md.Locator == locator {
		c.metrics.IncCacheLookups(true)
		return md, nil
	}
	c.metrics.IncCacheLookups(false)

	md, err := c.next.Extract(ctx, locator)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, md)
	return md, nil
}

// SupportedExtensions implements MetadataSource.
func (c *CachedExtractor) SupportedExtensions() []string {
	return c.next.SupportedExtensions()
}

// Invalidate drops the cached record for locator.
func (c *CachedExtractor) Invalidate(locator string) {
	if c.cache.Remove(cacheKey(locator)) {
		c.logger.Debug("metadata cache entry invalidated", "locator", locator)
	}
}

// Len returns the number of cached records.
func (c *CachedExtractor) Len() int {
	return c.cache.Len()
}

// Purge empties the cache.
func (c *CachedExtractor) Purge() {
	c.cache.Purge()
}
