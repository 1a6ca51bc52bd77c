package application

import (
	"context"
	"errors"
	"testing"

	"github.com/jobrunner/stacman/internal/ports/output"
)

func TestCachedExtractor(t *testing.T) {
	src := &countingSource{}
	c, err := NewCachedExtractor(src, 2, &output.NoOpMetrics{}, testLogger())
	if err != nil {
		t.Fatalf("NewCachedExtractor() error = %v", err)
	}
	ctx := context.Background()

	first, err := c.Extract(ctx, "/data/a.tif")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	second, _ := c.Extract(ctx, "/data/a.tif")
	if src.calls != 1 {
		t.Errorf("calls = %d, want 1", src.calls)
	}
	if first != second {
		t.Error("cached record should be returned")
	}

	c.Invalidate("/data/a.tif")
	if _, err := c.Extract(ctx, "/data/a.tif"); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("calls after invalidate = %d, want 2", src.calls)
	}

	// Capacity 2 evicts the least recently used locator.
	_, _ = c.Extract(ctx, "/data/b.tif")
	_, _ = c.Extract(ctx, "/data/c.tif")
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() after Purge = %d", c.Len())
	}
}

func TestCachedExtractorSkipsFailures(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	c, _ := NewCachedExtractor(src, 4, &output.NoOpMetrics{}, testLogger())

	for i := 0; i < 2; i++ {
		if _, err := c.Extract(context.Background(), "/data/a.tif"); err == nil {
			t.Fatal("Extract() should fail")
		}
	}
	if src.calls != 2 {
		t.Errorf("calls = %d, want 2 (failures are not cached)", src.calls)
	}
}

func TestNewCachedExtractorInvalidSize(t *testing.T) {
	if _, err := NewCachedExtractor(&countingSource{}, 0, &output.NoOpMetrics{}, testLogger()); err == nil {
		t.Error("size 0 should fail")
	}
}
