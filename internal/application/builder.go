package application

import (
	"fmt"
	"time"

	"github.com/jobrunner/stacman/internal/domain"
)

// Reserved asset keys for the primary asset of composite items.
const (
	MosaicAssetKey  = "vrt"
	CatalogAssetKey = "stac_catalog"
)

// ItemBuilder turns extracted metadata into catalog items.
type ItemBuilder struct {
	now func() time.Time
}

// NewItemBuilder creates a builder. A nil clock uses time.Now.
func NewItemBuilder(clock func() time.Time) *ItemBuilder {
	if clock == nil {
		clock = time.Now
	}
	return &ItemBuilder{now: clock}
}

// Build creates an item for src. Overrides take precedence over extracted
// values. The metadata record is not modified.
func (b *ItemBuilder) Build(src domain.SourceRef, md *domain.Metadata, ov domain.ItemOverrides) (*domain.Item, error) {
	if md == nil {
		return nil, fmt.Errorf("no metadata for %s: %w", src.Locator, domain.ErrInvalidInput)
	}
	locator := md.Locator
	if locator == "" {
		locator = src.Locator
	}
	kind := md.Kind
	if kind == domain.SourceUnknown {
		kind = src.Kind
	}

	id := itemID(kind, locator, md, ov)
	if err := domain.ValidateID("item", id); err != nil {
		return nil, fmt.Errorf("item for %q: %w", locator, err)
	}

	item := &domain.Item{
		ID:         id,
		Geometry:   domain.GeometryOf(md.Footprint),
		BBox:       md.BBox,
		Time:       b.itemTime(ov),
		Properties: md.Properties.Clone(),
		Assets:     make(map[string]*domain.Asset),
		Extensions: append([]string(nil), md.Extensions...),
	}
	if item.Geometry == nil {
		item.Geometry = domain.GeometryOf(md.BBox.Polygon())
	}
	if item.Properties == nil {
		item.Properties = domain.Properties{}
	}

	switch kind {
	case domain.SourceMosaic:
		buildMosaicAssets(item, locator, md)
	case domain.SourceNestedCatalog:
		buildCatalogAssets(item, locator, md)
	default:
		key := assetKey(locator)
		item.Assets[key] = &domain.Asset{
			Href:      locator,
			MediaType: md.MediaType,
			Roles:     []string{"data"},
			Title:     key,
		}
	}

	item.Properties.Merge(ov.Properties)
	return item, nil
}

func (b *ItemBuilder) itemTime(ov domain.ItemOverrides) domain.ItemTime {
	switch {
	case ov.Datetime != nil:
		return domain.At(*ov.Datetime)
	case ov.Start != nil || ov.End != nil:
		return domain.Between(ov.Start, ov.End)
	default:
		return domain.At(b.now())
	}
}

func itemID(kind domain.SourceKind, locator string, md *domain.Metadata, ov domain.ItemOverrides) string {
	if ov.ID != "" {
		return ov.ID
	}
	if kind == domain.SourceNestedCatalog && md.ID != "" {
		return md.ID
	}
	return assetKey(locator)
}

// assetKey derives the key from the file stem, falling back to the raw
// locator.
func assetKey(locator string) string {
	if stem, ok := domain.FileStem(locator); ok {
		return stem
	}
	return locator
}

func buildMosaicAssets(item *domain.Item, locator string, md *domain.Metadata) {
	item.Properties["vrt:type"] = domain.String("mosaic")
	item.Properties["vrt:source_count"] = domain.Int(len(md.SubSources))

	item.Assets[MosaicAssetKey] = &domain.Asset{
		Href:      locator,
		MediaType: md.MediaType,
		Roles:     []string{"data", "vrt"},
		Title:     assetKey(locator),
	}

	for i, sub := range md.SubSources {
		key := assetKey(sub.Locator)
		if key == MosaicAssetKey {
			key = fmt.Sprintf("source_%d", i)
		}
		item.Assets[key] = &domain.Asset{
			Href:        sub.Locator,
			MediaType:   domain.MediaTypeForLocator(sub.Locator),
			Roles:       []string{"source"},
			Title:       "Source " + key,
			Description: "Source file " + key + " referenced by the VRT",
		}
	}
}

func buildCatalogAssets(item *domain.Item, locator string, md *domain.Metadata) {
	title := md.ID
	if title == "" {
		title = assetKey(locator)
	}
	item.Assets[CatalogAssetKey] = &domain.Asset{
		Href:      locator,
		MediaType: domain.MediaJSON,
		Roles:     []string{"data", "stac_catalog"},
		Title:     title,
	}

	// Sub-item assets share one flat namespace; only the primary key is
	// protected, everything else is last write wins.
	i := 0
	for _, sub := range md.SubItems {
		for _, key := range sub.AssetKeys() {
			a := *sub.Assets[key]
			a.Roles = append([]string(nil), a.Roles...)
			if key == CatalogAssetKey {
				key = fmt.Sprintf("source_%d", i)
			}
			item.Assets[key] = &a
			i++
		}
	}
}
