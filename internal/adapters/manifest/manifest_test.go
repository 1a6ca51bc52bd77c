package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jobrunner/stacman/internal/domain"
)

const sample = `
catalog:
  id: elevation
  title: Elevation data
collections:
  - id: dem
    description: Global relief
    extent:
      bbox: [-10, -5, 10, 5]
      interval: ["2020-01-01T00:00:00Z", null]
    items:
      - /data/dem/etopo.tif
      - source: https://example.com/sst.nc
        id: sst
        datetime: "2021-06-01T02:00:00+02:00"
        properties:
          platform: aqua
          cloud_cover: 12
          bands: [red, nir]
  - id: mosaics
    items:
      - source: /data/mosaic.vrt
        start_datetime: "2019-01-01T00:00:00Z"
`

func TestLoad(t *testing.T) {
	plan, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if plan.Catalog.ID != "elevation" || plan.Catalog.Title != "Elevation data" {
		t.Errorf("catalog = %+v", plan.Catalog)
	}
	if len(plan.Collections) != 2 || plan.ItemCount() != 3 {
		t.Fatalf("collections = %d, items = %d", len(plan.Collections), plan.ItemCount())
	}

	dem := plan.Collections[0]
	if dem.Extent == nil {
		t.Fatal("dem extent missing")
	}
	if dem.Extent.Spatial[0] != domain.NewBBox(-10, -5, 10, 5) {
		t.Errorf("bbox = %v", dem.Extent.Spatial[0])
	}
	if iv := dem.Extent.Temporal[0]; iv.Start == nil || iv.End != nil {
		t.Errorf("interval = %+v, want open end", iv)
	}

	if dem.Items[0].Source != "/data/dem/etopo.tif" || dem.Items[0].Overrides.ID != "" {
		t.Errorf("shorthand item = %+v", dem.Items[0])
	}

	sst := dem.Items[1].Overrides
	if sst.ID != "sst" || sst.Datetime == nil {
		t.Fatalf("sst overrides = %+v", sst)
	}
	if got := sst.Datetime.Format("2006-01-02T15:04:05Z07:00"); got != "2021-06-01T00:00:00Z" {
		t.Errorf("datetime = %s, want UTC", got)
	}
	if v, _ := sst.Properties["cloud_cover"].Float(); v != 12 {
		t.Errorf("cloud_cover = %v", sst.Properties["cloud_cover"])
	}
	if bands, ok := sst.Properties["bands"].Items(); !ok || len(bands) != 2 {
		t.Errorf("bands = %v", sst.Properties["bands"])
	}

	mosaics := plan.Collections[1]
	if mosaics.Extent != nil {
		t.Errorf("mosaics extent = %+v, want nil", mosaics.Extent)
	}
	if ov := mosaics.Items[0].Overrides; ov.Start == nil || ov.End != nil {
		t.Errorf("mosaic overrides = %+v", ov)
	}
}

func TestLoadPartialExtent(t *testing.T) {
	plan, err := Load(strings.NewReader("collections:\n  - id: c\n    extent:\n      bbox: [0, 0, 1, 1]\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	ext := plan.Collections[0].Extent
	if len(ext.Temporal) != 1 || ext.Temporal[0].Start != nil || ext.Temporal[0].End != nil {
		t.Errorf("temporal = %+v, want one open interval", ext.Temporal)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"not yaml", "collections: [:"},
		{"unknown field", "collections:\n  - id: c\n    colour: red\n"},
		{"missing collection id", "collections:\n  - title: c\n"},
		{"duplicate collection", "collections:\n  - id: c\n  - id: c\n"},
		{"missing source", "collections:\n  - id: c\n    items:\n      - id: x\n"},
		{"bad datetime", "collections:\n  - id: c\n    items:\n      - source: a.tif\n        datetime: yesterday\n"},
		{"datetime and range", "collections:\n  - id: c\n    items:\n      - source: a.tif\n        datetime: \"2020-01-01T00:00:00Z\"\n        end_datetime: \"2020-02-01T00:00:00Z\"\n"},
		{"short bbox", "collections:\n  - id: c\n    extent:\n      bbox: [0, 0, 1]\n"},
		{"inverted bbox", "collections:\n  - id: c\n    extent:\n      bbox: [1, 1, 0, 0]\n"},
		{"collection id climbs", "collections:\n  - id: ../escaped\n"},
		{"collection id with separator", "collections:\n  - id: a/b\n"},
		{"item id climbs", "collections:\n  - id: c\n    items:\n      - source: a.tif\n        id: \"..\"\n"},
		{"one bound", "collections:\n  - id: c\n    extent:\n      interval: [\"2020-01-01T00:00:00Z\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Load() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if plan.ItemCount() != 3 {
		t.Errorf("items = %d", plan.ItemCount())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}
