package output

import (
	"context"

	"github.com/jobrunner/stacman/internal/domain"
)

// RasterBackend describes raster and mosaic datasets.
type RasterBackend interface {
	// DescribeRaster reads bounds, projection and the constituent files of
	// a dataset.
	DescribeRaster(ctx context.Context, locator string) (*RasterInfo, error)
}

// RasterInfo is what the raster backend reports for one dataset.
type RasterInfo struct {
	Driver     string
	Bounds     domain.BBox // Native CRS bounds
	Files      []string    // Dataset file first, then any sidecar or source files
	Projection *ProjectionInfo
}

// ProjectionInfo carries the CRS descriptor of a raster. Fields the backend
// could not determine are left empty.
type ProjectionInfo struct {
	EPSG      int
	WKT2      string
	Shape     []int     // [rows, cols]
	Transform []float64 // Affine coefficients a, b, c, d, e, f
	BBox      *domain.BBox
}

// ArrayBackend describes multi-dimensional gridded datasets.
type ArrayBackend interface {
	DescribeArray(ctx context.Context, locator string) (*ArrayInfo, error)
}

// ArrayInfo holds the extrema of one-dimensional variables and the global
// attributes of an array dataset.
type ArrayInfo struct {
	Ranges     map[string]ValueRange
	Attributes map[string]any
}

// ValueRange is the min and max of a variable's values.
type ValueRange struct {
	Min float64
	Max float64
}

// VectorBackend describes vector stores such as GeoPackages.
type VectorBackend interface {
	DescribeVector(ctx context.Context, locator string) (*VectorInfo, error)
}

// VectorInfo lists the layers of a vector store.
type VectorInfo struct {
	Layers []VectorLayer
}

// VectorLayer is one layer's bounds and spatial reference.
type VectorLayer struct {
	Name     string
	DataType string // features, tiles, ...
	SRSID    int
	Bounds   *domain.BBox
}

// CatalogReader loads an existing STAC catalog from a local path or URL.
type CatalogReader interface {
	ReadCatalog(ctx context.Context, href string) (*NestedCatalog, error)
}

// NestedCatalog is a catalog read for re-exposure. Items are pooled from
// every child catalog and collection; asset hrefs are absolute.
type NestedCatalog struct {
	ID          string
	Title       string
	Description string
	Items       []*domain.Item
}

// CatalogRepository persists the managed catalog tree.
type CatalogRepository interface {
	// Load reads the tree. A missing root document yields an error
	// matching domain.ErrCatalogNotFound.
	Load(ctx context.Context) (*domain.Catalog, error)

	// Save writes the tree as linked JSON documents.
	Save(ctx context.Context, catalog *domain.Catalog) error

	// Root returns the address of the root document.
	Root() string
}
