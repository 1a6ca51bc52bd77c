package application

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

// mockRaster implements output.RasterBackend for testing.
type mockRaster struct {
	infos map[string]*output.RasterInfo
	err   error
	calls int
}

func (m *mockRaster) DescribeRaster(_ context.Context, locator string) (*output.RasterInfo, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if info, ok := m.infos[locator]; ok {
		return info, nil
	}
	return &output.RasterInfo{
		Driver: "GTiff",
		Bounds: domain.GlobalBBox,
		Files:  []string{locator},
	}, nil
}

// mockArray implements output.ArrayBackend for testing.
type mockArray struct {
	info *output.ArrayInfo
	err  error
}

func (m *mockArray) DescribeArray(_ context.Context, _ string) (*output.ArrayInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.info, nil
}

// mockVector implements output.VectorBackend for testing.
type mockVector struct {
	info *output.VectorInfo
	err  error
}

func (m *mockVector) DescribeVector(_ context.Context, _ string) (*output.VectorInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.info, nil
}

// mockCatalogReader implements output.CatalogReader for testing.
type mockCatalogReader struct {
	catalogs map[string]*output.NestedCatalog
	err      error
}

func (m *mockCatalogReader) ReadCatalog(_ context.Context, href string) (*output.NestedCatalog, error) {
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.catalogs[href]; ok {
		return c, nil
	}
	return nil, domain.ErrCatalogNotFound
}

// mockRepository implements output.CatalogRepository for testing. It keeps
// the last saved tree in memory.
type mockRepository struct {
	mu      sync.Mutex
	saved   *domain.Catalog
	loadErr error
	saveErr error
	saves   int
}

func (m *mockRepository) Load(_ context.Context) (*domain.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.saved == nil {
		return nil, domain.ErrCatalogNotFound
	}
	return m.saved.Clone(), nil
}

func (m *mockRepository) Save(_ context.Context, c *domain.Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.saved = c.Clone()
	return nil
}

func (m *mockRepository) Root() string {
	return "mem://catalog.json"
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	objects []output.StorageObject
	data    map[string][]byte
	listErr error
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *mockStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockStorage) Put(_ context.Context, key string, data []byte) error {
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = data
	return nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *mockStorage) Locator(key string) string {
	return "s3://bucket/" + key
}

// countingSource implements MetadataSource and counts calls.
type countingSource struct {
	calls int
	err   error
}

func (c *countingSource) Extract(_ context.Context, locator string) (*domain.Metadata, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &domain.Metadata{
		Kind:       domain.SourceRaster,
		Locator:    locator,
		BBox:       domain.GlobalBBox,
		Properties: domain.Properties{},
	}, nil
}

func (c *countingSource) SupportedExtensions() []string {
	return []string{".tif"}
}

// newTestManager returns a loaded manager over an in-memory repository and
// a raster-only extractor.
func newTestManager(raster *mockRaster) (*CatalogManager, *mockRepository) {
	if raster == nil {
		raster = &mockRaster{}
	}
	repo := &mockRepository{}
	extractor := NewExtractor(Backends{Raster: raster}, &output.NoOpMetrics{}, testLogger())
	m := NewCatalogManager(repo, extractor, &output.NoOpMetrics{}, testLogger(), ManagerOptions{Clock: testClock})
	if err := m.LoadOrCreate(context.Background()); err != nil {
		panic(err)
	}
	return m, repo
}
