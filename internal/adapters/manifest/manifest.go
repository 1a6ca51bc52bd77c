// Package manifest reads YAML ingest manifests.
//
// A manifest names the collections to create and the sources to catalog
// into them:
//
//	catalog:
//	  id: elevation
//	  title: Elevation data
//	collections:
//	  - id: dem
//	    description: Global relief
//	    extent:
//	      bbox: [-180, -90, 180, 90]
//	      interval: ["2020-01-01T00:00:00Z", null]
//	    items:
//	      - /data/dem/etopo.tif
//	      - source: https://example.com/sst.nc
//	        id: sst
//	        datetime: "2021-06-01T00:00:00Z"
//	        properties:
//	          platform: aqua
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/stacman/internal/domain"
)

type document struct {
	Catalog struct {
		ID          string `yaml:"id"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	} `yaml:"catalog"`
	Collections []collectionDoc `yaml:"collections"`
}

type collectionDoc struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Extent      *extentDoc `yaml:"extent"`
	Items       []itemDoc  `yaml:"items"`
}

type extentDoc struct {
	BBox     []float64 `yaml:"bbox"`
	Interval []*string `yaml:"interval"`
}

type itemDoc struct {
	Source        string         `yaml:"source"`
	ID            string         `yaml:"id"`
	Datetime      string         `yaml:"datetime"`
	StartDatetime string         `yaml:"start_datetime"`
	EndDatetime   string         `yaml:"end_datetime"`
	Properties    map[string]any `yaml:"properties"`
}

// UnmarshalYAML accepts a bare source string as shorthand for an item
// without overrides.
func (d *itemDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&d.Source)
	}
	type plain itemDoc
	return node.Decode((*plain)(d))
}

// LoadFile reads the manifest at path.
func LoadFile(path string) (domain.IngestPlan, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.IngestPlan{}, err
	}
	defer f.Close()

	plan, err := Load(f)
	if err != nil {
		return domain.IngestPlan{}, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// Load decodes a manifest. Unknown fields are rejected.
func Load(r io.Reader) (domain.IngestPlan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.IngestPlan{}, fmt.Errorf("empty manifest: %w", domain.ErrInvalidInput)
		}
		return domain.IngestPlan{}, fmt.Errorf("decoding manifest: %v: %w", err, domain.ErrInvalidInput)
	}
	return doc.plan()
}

func (d document) plan() (domain.IngestPlan, error) {
	plan := domain.IngestPlan{
		Catalog: domain.CatalogDefaults{
			ID:          d.Catalog.ID,
			Title:       d.Catalog.Title,
			Description: d.Catalog.Description,
		},
	}

	seen := make(map[string]bool)
	for i, c := range d.Collections {
		if err := domain.ValidateID("collection", c.ID); err != nil {
			return plan, fmt.Errorf("collections[%d]: %w", i, err)
		}
		if seen[c.ID] {
			return plan, invalid("collections[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true

		cp := domain.CollectionPlan{
			ID:          c.ID,
			Title:       c.Title,
			Description: c.Description,
		}
		if c.Extent != nil {
			ext, err := c.Extent.extent()
			if err != nil {
				return plan, fmt.Errorf("collection %s: %w", c.ID, err)
			}
			cp.Extent = ext
		}
		for j, it := range c.Items {
			ip, err := it.item()
			if err != nil {
				return plan, fmt.Errorf("collection %s: items[%d]: %w", c.ID, j, err)
			}
			cp.Items = append(cp.Items, ip)
		}
		plan.Collections = append(plan.Collections, cp)
	}
	return plan, nil
}

// extent converts a declared extent. A missing bbox is global and a
// missing interval is open on both ends.
func (e extentDoc) extent() (*domain.Extent, error) {
	ext := domain.Extent{
		Spatial:  []domain.BBox{domain.GlobalBBox},
		Temporal: []domain.Interval{{}},
	}
	if e.BBox != nil {
		bbox, err := domain.BBoxFromSlice(e.BBox)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
		}
		if !bbox.IsValid() {
			return nil, invalid("bbox %v is not ordered min before max", e.BBox)
		}
		ext.Spatial = []domain.BBox{bbox}
	}
	if e.Interval != nil {
		if len(e.Interval) != 2 {
			return nil, invalid("interval needs two bounds, got %d", len(e.Interval))
		}
		start, err := parseBound(e.Interval[0])
		if err != nil {
			return nil, err
		}
		end, err := parseBound(e.Interval[1])
		if err != nil {
			return nil, err
		}
		ext.Temporal = []domain.Interval{domain.NewInterval(start, end)}
	}
	return &ext, nil
}

func (d itemDoc) item() (domain.ItemPlan, error) {
	if d.Source == "" {
		return domain.ItemPlan{}, invalid("source is required")
	}
	if d.ID != "" {
		if err := domain.ValidateID("item", d.ID); err != nil {
			return domain.ItemPlan{}, err
		}
	}
	ov := domain.ItemOverrides{ID: d.ID}

	var err error
	if ov.Datetime, err = parseTime(d.Datetime); err != nil {
		return domain.ItemPlan{}, err
	}
	if ov.Start, err = parseTime(d.StartDatetime); err != nil {
		return domain.ItemPlan{}, err
	}
	if ov.End, err = parseTime(d.EndDatetime); err != nil {
		return domain.ItemPlan{}, err
	}
	if ov.Datetime != nil && (ov.Start != nil || ov.End != nil) {
		return domain.ItemPlan{}, invalid("datetime and start/end datetime are mutually exclusive")
	}

	if len(d.Properties) > 0 {
		ov.Properties = make(domain.Properties, len(d.Properties))
		for k, v := range d.Properties {
			ov.Properties[k] = domain.CoerceValue(v)
		}
	}
	return domain.ItemPlan{Source: d.Source, Overrides: ov}, nil
}

func parseBound(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	return parseTime(*s)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, invalid("timestamp %q is not RFC 3339", s)
	}
	t = t.UTC()
	return &t, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrInvalidInput)
}
