// Package application contains the application services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// ProjectionExtension is the STAC projection extension schema.
const ProjectionExtension = "https://stac-extensions.github.io/projection/v1.1.0/schema.json"

// Coordinate variable names probed for array datasets, in order.
var (
	latitudeAliases  = []string{"lat", "latitude", "Latitude", "LAT", "y", "Y"}
	longitudeAliases = []string{"lon", "longitude", "Longitude", "LON", "x", "X"}
)

// MetadataSource produces normalized metadata for a locator.
type MetadataSource interface {
	Extract(ctx context.Context, locator string) (*domain.Metadata, error)
	SupportedExtensions() []string
}

// Strategy extracts metadata for one source kind.
type Strategy interface {
	Extract(ctx context.Context, src domain.SourceRef) (*domain.Metadata, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, src domain.SourceRef) (*domain.Metadata, error)

// Extract implements Strategy.
func (f StrategyFunc) Extract(ctx context.Context, src domain.SourceRef) (*domain.Metadata, error) {
	return f(ctx, src)
}

// Backends bundles the external collaborators used by the built-in
// strategies. A nil backend leaves its kinds unsupported.
type Backends struct {
	Raster   output.RasterBackend
	Array    output.ArrayBackend
	Vector   output.VectorBackend
	Catalogs output.CatalogReader
}

// Extractor classifies sources by extension and dispatches to the
// strategy registered for their kind.
type Extractor struct {
	mu         sync.RWMutex
	kinds      map[string]domain.SourceKind
	strategies map[domain.SourceKind]Strategy
	backends   Backends
	metrics    output.MetricsCollector
	logger     *slog.Logger
}

// NewExtractor creates an extractor with the built-in extension mapping.
func NewExtractor(backends Backends, metrics output.MetricsCollector, logger *slog.Logger) *Extractor {
	e := &Extractor{
		kinds:      make(map[string]domain.SourceKind),
		strategies: make(map[domain.SourceKind]Strategy),
		backends:   backends,
		metrics:    metrics,
		logger:     logger,
	}

	builtin := []struct {
		exts    []string
		kind    domain.SourceKind
		enabled bool
	}{
		{[]string{".tif", ".tiff"}, domain.SourceRaster, backends.Raster != nil},
		{[]string{".vrt"}, domain.SourceMosaic, backends.Raster != nil},
		{[]string{".nc"}, domain.SourceArray, backends.Array != nil},
		{[]string{".json"}, domain.SourceNestedCatalog, backends.Catalogs != nil},
		{[]string{".gpkg"}, domain.SourceVector, backends.Vector != nil},
	}
	for _, b := range builtin {
		if !b.enabled {
			continue
		}
		for _, ext := range b.exts {
			e.kinds[ext] = b.kind
		}
		e.strategies[b.kind] = e.builtinStrategy(b.kind)
	}
	return e
}

// Register maps an extension to a kind. A non-nil strategy replaces the
// one registered for the kind.
func (e *Extractor) Register(ext string, kind domain.SourceKind, strategy Strategy) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds[ext] = kind
	if strategy != nil {
		e.strategies[kind] = strategy
	}
}

// SupportedExtensions returns the registered extensions, sorted.
func (e *Extractor) SupportedExtensions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	exts := make([]string, 0, len(e.kinds))
	for ext, kind := range e.kinds {
		if _, ok := e.strategies[kind]; ok {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// Classify infers the kind of a locator.
func (e *Extractor) Classify(locator string) (domain.SourceRef, error) {
	ext := domain.LocatorExtension(locator)

	e.mu.RLock()
	kind, ok := e.kinds[ext]
	_, hasStrategy := e.strategies[kind]
	e.mu.RUnlock()

	if !ok || !hasStrategy {
		return domain.SourceRef{}, &domain.UnsupportedFormatError{
			Extension: ext,
			Supported: e.SupportedExtensions(),
		}
	}
	return domain.SourceRef{Locator: locator, Kind: kind}, nil
}

// Extract classifies the locator and runs the matching strategy.
func (e *Extractor) Extract(ctx context.Context, locator string) (*domain.Metadata, error) {
	src, err := e.Classify(locator)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	strategy := e.strategies[src.Kind]
	e.mu.RUnlock()

	e.logger.Debug("extracting metadata", "locator", locator, "kind", src.Kind)
	start := time.Now()
	md, err := strategy.Extract(ctx, src)
	e.metrics.ObserveExtractionDuration(src.Kind.String(), time.Since(start))
	e.metrics.IncExtractions(src.Kind.String(), err == nil)
	if err != nil {
		return nil, fmt.Errorf("extracting %s metadata from %s: %w", src.Kind, locator, err)
	}
	return md, nil
}

func (e *Extractor) builtinStrategy(kind domain.SourceKind) Strategy {
	switch kind {
	case domain.SourceRaster:
		return StrategyFunc(e.extractRaster)
	case domain.SourceMosaic:
		return StrategyFunc(e.extractMosaic)
	case domain.SourceArray:
		return StrategyFunc(e.extractArray)
	case domain.SourceNestedCatalog:
		return StrategyFunc(e.extractNestedCatalog)
	case domain.SourceVector:
		return StrategyFunc(e.extractVector)
	default:
		return nil
	}
}

func (e *Extractor) extractRaster(ctx context.Context, src domain.SourceRef) (*domain.Metadata, error) {
	info, err := e.backends.Raster.DescribeRaster(ctx, src.Locator)
	if err != nil {
		return nil, err
	}
	return e.rasterMetadata(src, info), nil
}

func (e *Extractor) extractMosaic(ctx context.Context, src domain.SourceRef) (*domain.Metadata, error) {
	info, err := e.backends.Raster.DescribeRaster(ctx, src.Locator)
	if err != nil {
		return nil, err
	}

	md := e.rasterMetadata(src, info)
	self := sameLocator(src.Locator)
	for _, f := range info.Files {
		if self(f) {
			continue
		}
		kind := domain.SourceUnknown
		if ref, err := e.Classify(f); err == nil {
			kind = ref.Kind
		}
		md.SubSources = append(md.SubSources, domain.SourceRef{Locator: f, Kind: kind})
	}
	return md, nil
}

func (e *Extractor) rasterMetadata(src domain.SourceRef, info *output.RasterInfo) *domain.Metadata {
	md := &domain.Metadata{
		Kind:       src.Kind,
		Locator:    src.Locator,
		BBox:       info.Bounds,
		Footprint:  info.Bounds.Polygon(),
		MediaType:  domain.MediaTypeForLocator(src.Locator),
		Properties: domain.Properties{},
	}

	props, err := projectionProperties(info.Projection)
	if err != nil {
		e.logger.Debug("projection properties unavailable", "locator", src.Locator, "error", err)
		return md
	}
	md.Properties.Merge(props)
	md.Extensions = []string{ProjectionExtension}
	return md
}

func (e *Extractor) extractArray(ctx context.Context, src domain.SourceRef) (*domain.Metadata, error) {
	info, err := e.backends.Array.DescribeArray(ctx, src.Locator)
	if err != nil {
		return nil, err
	}

	lat, latOK := findAxis(info.Ranges, latitudeAliases)
	lon, lonOK := findAxis(info.Ranges, longitudeAliases)
	if !latOK || !lonOK {
		var missing []string
		if !latOK {
			missing = append(missing, "latitude")
		}
		if !lonOK {
			missing = append(missing, "longitude")
		}
		return nil, &domain.AmbiguousCoordinateAxesError{Locator: src.Locator, Missing: missing}
	}

	bbox := domain.NewBBox(lon.Min, lat.Min, lon.Max, lat.Max)
	props := make(domain.Properties, len(info.Attributes))
	for k, v := range info.Attributes {
		props[k] = domain.CoerceValue(v)
	}

	return &domain.Metadata{
		Kind:       src.Kind,
		Locator:    src.Locator,
		BBox:       bbox,
		Footprint:  bbox.Polygon(),
		MediaType:  domain.MediaTypeForLocator(src.Locator),
		Properties: props,
	}, nil
}

func (e *Extractor) extractNestedCatalog(ctx context.Context, src domain.SourceRef) (*domain.Metadata, error) {
	nested, err := e.backends.Catalogs.ReadCatalog(ctx, src.Locator)
	if err != nil {
		return nil, err
	}

	var points []orb.Point
	for _, item := range nested.Items {
		if item.Geometry == nil {
			continue
		}
		points = append(points, domain.Points(item.Geometry.Geometry())...)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: %w", src.Locator, domain.ErrEmptyCatalog)
	}

	hull := domain.ConvexHull(points)
	return &domain.Metadata{
		Kind:       src.Kind,
		Locator:    src.Locator,
		ID:         nested.ID,
		BBox:       domain.BBoxFromBound(hull.Bound()),
		Footprint:  hull,
		MediaType:  domain.MediaJSON,
		Properties: domain.Properties{},
		SubItems:   nested.Items,
	}, nil
}

func (e *Extractor) extractVector(ctx context.Context, src domain.SourceRef) (*domain.Metadata, error) {
	info, err := e.backends.Vector.DescribeVector(ctx, src.Locator)
	if err != nil {
		return nil, err
	}

	var (
		bbox   *domain.BBox
		names  []domain.Value
		srsIDs = make(map[int]struct{})
	)
	for _, layer := range info.Layers {
		names = append(names, domain.String(layer.Name))
		srsIDs[layer.SRSID] = struct{}{}
		if layer.Bounds == nil {
			continue
		}
		if bbox == nil {
			b := *layer.Bounds
			bbox = &b
			continue
		}
		merged := bbox.Union(*layer.Bounds)
		bbox = &merged
	}
	if bbox == nil {
		return nil, fmt.Errorf("%s: no layer carries bounds: %w", src.Locator, domain.ErrInvalidBBox)
	}

	md := &domain.Metadata{
		Kind:      src.Kind,
		Locator:   src.Locator,
		BBox:      *bbox,
		Footprint: bbox.Polygon(),
		MediaType: domain.MediaTypeForLocator(src.Locator),
		Properties: domain.Properties{
			"gpkg:layers": domain.List(names...),
		},
	}
	if len(srsIDs) == 1 {
		for id := range srsIDs {
			if id > 0 {
				md.Properties["proj:epsg"] = domain.Int(id)
				md.Extensions = []string{ProjectionExtension}
			}
		}
	}
	return md, nil
}

// projectionProperties converts the backend's CRS descriptor into
// proj: properties.
func projectionProperties(p *output.ProjectionInfo) (domain.Properties, error) {
	if p == nil {
		return nil, fmt.Errorf("no projection reported: %w", domain.ErrNotFound)
	}
	if p.EPSG == 0 && p.WKT2 == "" {
		return nil, fmt.Errorf("projection has neither EPSG code nor WKT: %w", domain.ErrInvalidInput)
	}

	props := domain.Properties{}
	if p.EPSG != 0 {
		props["proj:epsg"] = domain.Int(p.EPSG)
	} else {
		props["proj:epsg"] = domain.Null()
	}
	if p.WKT2 != "" {
		props["proj:wkt2"] = domain.String(p.WKT2)
	}
	if len(p.Shape) == 2 {
		props["proj:shape"] = domain.CoerceValue(p.Shape)
	}
	if len(p.Transform) >= 6 {
		props["proj:transform"] = domain.CoerceValue(p.Transform)
	}
	if p.BBox != nil {
		props["proj:bbox"] = domain.CoerceValue(p.BBox.Slice())
	}
	return props, nil
}

func findAxis(ranges map[string]output.ValueRange, aliases []string) (output.ValueRange, bool) {
	for _, name := range aliases {
		if r, ok := ranges[name]; ok {
			return r, true
		}
	}
	return output.ValueRange{}, false
}

// sameLocator returns a predicate matching other spellings of locator.
func sameLocator(locator string) func(string) bool {
	clean := func(s string) string {
		if strings.Contains(s, "://") {
			return s
		}
		if abs, err := filepath.Abs(s); err == nil {
			return abs
		}
		return filepath.Clean(s)
	}
	self := clean(locator)
	return func(other string) bool {
		return clean(other) == self
	}
}
