package application

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jobrunner/stacman/internal/domain"
)

func rasterMeta(locator string) *domain.Metadata {
	return &domain.Metadata{
		Kind:      domain.SourceRaster,
		Locator:   locator,
		BBox:      domain.NewBBox(1, 2, 3, 4),
		MediaType: domain.MediaTypeForLocator(locator),
		Properties: domain.Properties{
			"proj:epsg": domain.Int(4326),
			"source":    domain.String("extracted"),
		},
	}
}

func TestItemBuilderDefaults(t *testing.T) {
	b := NewItemBuilder(testClock)
	locator := "/data/scene.2024.tif"

	item, err := b.Build(domain.SourceRef{Locator: locator, Kind: domain.SourceRaster}, rasterMeta(locator), domain.ItemOverrides{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if item.ID != "scene" {
		t.Errorf("ID = %q, want %q", item.ID, "scene")
	}
	if item.Time.Datetime == nil || !item.Time.Datetime.Equal(testNow) {
		t.Errorf("Datetime = %v, want %v", item.Time.Datetime, testNow)
	}
	if item.Geometry == nil {
		t.Fatal("Geometry is nil")
	}
	asset, ok := item.Assets["scene"]
	if !ok {
		t.Fatalf("assets = %v, want key scene", item.AssetKeys())
	}
	if asset.Href != locator || !asset.HasRole("data") || asset.Title != "scene" {
		t.Errorf("asset = %+v", asset)
	}
	if asset.MediaType != domain.MediaTIFF {
		t.Errorf("MediaType = %q", asset.MediaType)
	}
}

func TestItemBuilderOverridesWin(t *testing.T) {
	b := NewItemBuilder(testClock)
	locator := "/data/scene.tif"
	md := rasterMeta(locator)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)

	item, err := b.Build(domain.SourceRef{Locator: locator}, md, domain.ItemOverrides{
		ID:    "custom",
		Start: &start,
		End:   &end,
		Properties: domain.Properties{
			"source":   domain.String("override"),
			"platform": domain.String("sentinel-2"),
		},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if item.ID != "custom" {
		t.Errorf("ID = %q", item.ID)
	}
	if !item.Time.IsRange() || !item.Time.Start.Equal(start) || !item.Time.End.Equal(end) {
		t.Errorf("Time = %+v", item.Time)
	}
	if s, _ := item.Properties["source"].Str(); s != "override" {
		t.Errorf("source = %v, want override", item.Properties["source"])
	}
	if _, ok := item.Properties["proj:epsg"]; !ok {
		t.Error("extracted property lost")
	}
	if s, _ := md.Properties["source"].Str(); s != "extracted" {
		t.Error("metadata record was modified")
	}
}

func TestItemBuilderMosaic(t *testing.T) {
	b := NewItemBuilder(testClock)
	locator := "/data/mosaic.vrt"
	md := &domain.Metadata{
		Kind:    domain.SourceMosaic,
		Locator: locator,
		BBox:    domain.NewBBox(0, 0, 20, 10),
		SubSources: []domain.SourceRef{
			{Locator: "/data/west.tif", Kind: domain.SourceRaster},
			{Locator: "/data/east.tif", Kind: domain.SourceRaster},
			{Locator: "/data/vrt.tif", Kind: domain.SourceRaster},
			{Locator: "/other/west.tif", Kind: domain.SourceRaster},
		},
	}

	item, err := b.Build(domain.SourceRef{Locator: locator, Kind: domain.SourceMosaic}, md, domain.ItemOverrides{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []string{"east", "source_2", "vrt", "west"}
	if got := item.AssetKeys(); !reflect.DeepEqual(got, want) {
		t.Errorf("asset keys = %v, want %v", got, want)
	}
	primary := item.Assets[MosaicAssetKey]
	if primary.Href != locator || !primary.HasRole("vrt") || !primary.HasRole("data") {
		t.Errorf("primary asset = %+v", primary)
	}
	// Last write wins for the duplicated stem.
	if item.Assets["west"].Href != "/other/west.tif" {
		t.Errorf("west href = %q", item.Assets["west"].Href)
	}
	if item.Assets["east"].Description != "Source file east referenced by the VRT" {
		t.Errorf("description = %q", item.Assets["east"].Description)
	}
	if n, _ := item.Properties["vrt:source_count"].Float(); n != 4 {
		t.Errorf("vrt:source_count = %v", item.Properties["vrt:source_count"])
	}
}

func TestItemBuilderNestedCatalog(t *testing.T) {
	b := NewItemBuilder(testClock)
	locator := "https://example.com/stac/catalog.json"
	md := &domain.Metadata{
		Kind:    domain.SourceNestedCatalog,
		Locator: locator,
		ID:      "remote",
		BBox:    domain.NewBBox(0, 0, 6, 6),
		SubItems: []*domain.Item{
			{ID: "a", Assets: map[string]*domain.Asset{"cog": {Href: "https://example.com/a.tif"}}},
			{ID: "b", Assets: map[string]*domain.Asset{
				"cog":       {Href: "https://example.com/b.tif"},
				"thumbnail": {Href: "https://example.com/b.png"},
			}},
		},
	}

	item, err := b.Build(domain.SourceRef{Locator: locator}, md, domain.ItemOverrides{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if item.ID != "remote" {
		t.Errorf("ID = %q, want remote", item.ID)
	}
	want := []string{"cog", "stac_catalog", "thumbnail"}
	if got := item.AssetKeys(); !reflect.DeepEqual(got, want) {
		t.Errorf("asset keys = %v, want %v", got, want)
	}
	if item.Assets["cog"].Href != "https://example.com/b.tif" {
		t.Errorf("cog href = %q, want last write", item.Assets["cog"].Href)
	}
	if item.Assets[CatalogAssetKey].MediaType != domain.MediaJSON {
		t.Errorf("catalog asset media type = %q", item.Assets[CatalogAssetKey].MediaType)
	}
}

func TestItemBuilderErrors(t *testing.T) {
	b := NewItemBuilder(testClock)

	if _, err := b.Build(domain.SourceRef{Locator: "/x.tif"}, nil, domain.ItemOverrides{}); err == nil {
		t.Error("nil metadata should fail")
	}

	// Without a stem the raw locator is the ID, as long as it can name a
	// directory.
	item, err := b.Build(domain.SourceRef{Locator: ".hidden"}, rasterMeta(".hidden"), domain.ItemOverrides{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if item.ID != ".hidden" {
		t.Errorf("ID = %q, want raw locator fallback", item.ID)
	}
	if _, err := b.Build(domain.SourceRef{Locator: "/data/.hidden"}, rasterMeta("/data/.hidden"), domain.ItemOverrides{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("raw locator with separators: error = %v, want ErrInvalidInput", err)
	}
}

func TestItemBuilderRejectsUnsafeIDs(t *testing.T) {
	b := NewItemBuilder(testClock)
	md := rasterMeta("/data/scene.tif")

	for _, id := range []string{"..", ".", "../escaped", "a/b", `a\b`} {
		t.Run(id, func(t *testing.T) {
			_, err := b.Build(domain.SourceRef{Locator: "/data/scene.tif"}, md, domain.ItemOverrides{ID: id})
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Build(id %q) error = %v, want ErrInvalidInput", id, err)
			}
		})
	}

	nested := &domain.Metadata{
		Kind:    domain.SourceNestedCatalog,
		Locator: "https://example.com/catalog.json",
		ID:      "../remote",
		BBox:    domain.NewBBox(0, 0, 1, 1),
	}
	if _, err := b.Build(domain.SourceRef{Locator: nested.Locator}, nested, domain.ItemOverrides{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("nested catalog id: error = %v, want ErrInvalidInput", err)
	}
}

func TestItemBuilderNestedCatalogKeepsPrimaryAsset(t *testing.T) {
	b := NewItemBuilder(testClock)
	locator := "https://example.com/stac/catalog.json"
	md := &domain.Metadata{
		Kind:    domain.SourceNestedCatalog,
		Locator: locator,
		ID:      "remote",
		BBox:    domain.NewBBox(0, 0, 1, 1),
		SubItems: []*domain.Item{
			{ID: "a", Assets: map[string]*domain.Asset{
				"cog":           {Href: "https://example.com/a.tif"},
				CatalogAssetKey: {Href: "https://example.com/inner/catalog.json"},
			}},
		},
	}

	item, err := b.Build(domain.SourceRef{Locator: locator}, md, domain.ItemOverrides{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if href := item.Assets[CatalogAssetKey].Href; href != locator {
		t.Errorf("primary href = %q, want %q", href, locator)
	}
	// Sub-item keys are visited sorted: cog is 0, stac_catalog is 1.
	if a, ok := item.Assets["source_1"]; !ok || a.Href != "https://example.com/inner/catalog.json" {
		t.Errorf("renamed sub-item asset = %+v", a)
	}
}
