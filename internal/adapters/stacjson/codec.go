// Package stacjson reads and writes STAC 1.0.0 JSON documents.
package stacjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/stacman/internal/domain"
)

// Document types.
const (
	TypeCatalog    = "Catalog"
	TypeCollection = "Collection"
	TypeFeature    = "Feature"
)

// Link relations.
const (
	RelRoot       = "root"
	RelParent     = "parent"
	RelChild      = "child"
	RelItem       = "item"
	RelCollection = "collection"
	RelSelf       = "self"
)

// timeLayout is used for all datetimes written to documents.
const timeLayout = time.RFC3339Nano

// Link is a STAC link object.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// header holds the fields shared by every document; it is used to sniff
// the type before decoding the rest.
type header struct {
	Type        string `json:"type"`
	StacVersion string `json:"stac_version"`
	ID          string `json:"id"`
	Links       []Link `json:"links"`
}

type catalogDoc struct {
	Type           string   `json:"type"`
	StacVersion    string   `json:"stac_version"`
	StacExtensions []string `json:"stac_extensions"`
	ID             string   `json:"id"`
	Title          string   `json:"title,omitempty"`
	Description    string   `json:"description"`
	Links          []Link   `json:"links"`
}

type collectionDoc struct {
	Type           string    `json:"type"`
	StacVersion    string    `json:"stac_version"`
	StacExtensions []string  `json:"stac_extensions"`
	ID             string    `json:"id"`
	Title          string    `json:"title,omitempty"`
	Description    string    `json:"description"`
	License        string    `json:"license"`
	Extent         extentDoc `json:"extent"`
	Links          []Link    `json:"links"`
}

type extentDoc struct {
	Spatial  spatialDoc  `json:"spatial"`
	Temporal temporalDoc `json:"temporal"`
}

type spatialDoc struct {
	BBox [][]float64 `json:"bbox"`
}

type temporalDoc struct {
	Interval [][]*string `json:"interval"`
}

type itemDoc struct {
	Type           string              `json:"type"`
	StacVersion    string              `json:"stac_version"`
	StacExtensions []string            `json:"stac_extensions"`
	ID             string              `json:"id"`
	Geometry       *geojson.Geometry   `json:"geometry"`
	BBox           []float64           `json:"bbox,omitempty"`
	Properties     domain.Properties   `json:"properties"`
	Links          []Link              `json:"links"`
	Assets         map[string]assetDoc `json:"assets"`
	Collection     string              `json:"collection,omitempty"`
}

type assetDoc struct {
	Href        string   `json:"href"`
	Type        string   `json:"type,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// encode writes v as indented JSON with a trailing newline. Map keys are
// sorted by encoding/json, so equal trees always produce equal bytes.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newCatalogDoc(c *domain.Catalog, links []Link) catalogDoc {
	return catalogDoc{
		Type:           TypeCatalog,
		StacVersion:    domain.STACVersion,
		StacExtensions: []string{},
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		Links:          links,
	}
}

func newCollectionDoc(c *domain.Collection, links []Link) collectionDoc {
	return collectionDoc{
		Type:           TypeCollection,
		StacVersion:    domain.STACVersion,
		StacExtensions: []string{},
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		License:        c.License,
		Extent:         encodeExtent(c.Extent),
		Links:          links,
	}
}

// newItemDoc converts an item. hrefFn maps asset hrefs to what is written.
func newItemDoc(item *domain.Item, links []Link, hrefFn func(string) string) itemDoc {
	props := item.Properties.Clone()
	if props == nil {
		props = domain.Properties{}
	}
	if item.Time.Datetime != nil {
		props["datetime"] = domain.String(formatTime(item.Time.Datetime))
	} else {
		props["datetime"] = domain.Null()
		if item.Time.Start != nil {
			props["start_datetime"] = domain.String(formatTime(item.Time.Start))
		}
		if item.Time.End != nil {
			props["end_datetime"] = domain.String(formatTime(item.Time.End))
		}
	}

	assets := make(map[string]assetDoc, len(item.Assets))
	for key, a := range item.Assets {
		assets[key] = assetDoc{
			Href:        hrefFn(a.Href),
			Type:        string(a.MediaType),
			Title:       a.Title,
			Description: a.Description,
			Roles:       a.Roles,
		}
	}

	exts := item.Extensions
	if exts == nil {
		exts = []string{}
	}
	return itemDoc{
		Type:           TypeFeature,
		StacVersion:    domain.STACVersion,
		StacExtensions: exts,
		ID:             item.ID,
		Geometry:       item.Geometry,
		BBox:           item.BBox.Slice(),
		Properties:     props,
		Links:          links,
		Assets:         assets,
		Collection:     item.Collection,
	}
}

func encodeExtent(e domain.Extent) extentDoc {
	out := extentDoc{
		Spatial:  spatialDoc{BBox: make([][]float64, 0, len(e.Spatial))},
		Temporal: temporalDoc{Interval: make([][]*string, 0, len(e.Temporal))},
	}
	for _, b := range e.Spatial {
		out.Spatial.BBox = append(out.Spatial.BBox, b.Slice())
	}
	for _, iv := range e.Temporal {
		out.Temporal.Interval = append(out.Temporal.Interval, []*string{timeString(iv.Start), timeString(iv.End)})
	}
	return out
}

func decodeExtent(d extentDoc) (domain.Extent, error) {
	var out domain.Extent
	for _, raw := range d.Spatial.BBox {
		b, err := domain.BBoxFromSlice(raw)
		if err != nil {
			return domain.Extent{}, err
		}
		out.Spatial = append(out.Spatial, b)
	}
	for _, raw := range d.Temporal.Interval {
		if len(raw) != 2 {
			return domain.Extent{}, fmt.Errorf("temporal interval needs 2 values, got %d: %w", len(raw), domain.ErrInvalidInput)
		}
		start, err := parseTimePtr(raw[0])
		if err != nil {
			return domain.Extent{}, err
		}
		end, err := parseTimePtr(raw[1])
		if err != nil {
			return domain.Extent{}, err
		}
		out.Temporal = append(out.Temporal, domain.NewInterval(start, end))
	}
	return out, nil
}

// decodeItem converts an item document. hrefFn resolves asset hrefs.
func decodeItem(d itemDoc, hrefFn func(string) string) (*domain.Item, error) {
	if d.Type != TypeFeature {
		return nil, fmt.Errorf("item %q has type %q: %w", d.ID, d.Type, domain.ErrInvalidInput)
	}

	props := d.Properties.Clone()
	if props == nil {
		props = domain.Properties{}
	}
	var (
		it  domain.ItemTime
		err error
	)
	if dt, ok := takeTime(props, "datetime", &err); ok {
		it = domain.At(*dt)
	} else {
		start, _ := takeTime(props, "start_datetime", &err)
		end, _ := takeTime(props, "end_datetime", &err)
		it = domain.Between(start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("item %q: %w", d.ID, err)
	}

	item := &domain.Item{
		ID:         d.ID,
		Geometry:   d.Geometry,
		Time:       it,
		Properties: props,
		Assets:     make(map[string]*domain.Asset, len(d.Assets)),
		Extensions: d.StacExtensions,
		Collection: d.Collection,
	}
	if len(d.BBox) > 0 {
		if item.BBox, err = domain.BBoxFromSlice(d.BBox); err != nil {
			return nil, fmt.Errorf("item %q: %w", d.ID, err)
		}
	}
	if len(item.Extensions) == 0 {
		item.Extensions = nil
	}
	for key, a := range d.Assets {
		item.Assets[key] = &domain.Asset{
			Href:        hrefFn(a.Href),
			MediaType:   domain.MediaType(a.Type),
			Roles:       a.Roles,
			Title:       a.Title,
			Description: a.Description,
		}
	}
	return item, nil
}

// takeTime removes key from props and parses it. A null or missing value
// reports false. Parse failures are stored in errp.
func takeTime(props domain.Properties, key string, errp *error) (*time.Time, bool) {
	v, ok := props[key]
	if !ok {
		return nil, false
	}
	delete(props, key)
	s, ok := v.Str()
	if !ok {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if *errp == nil {
			*errp = fmt.Errorf("parsing %s %q: %w", key, s, domain.ErrInvalidInput)
		}
		return nil, false
	}
	return &t, true
}

func formatTime(t *time.Time) string {
	return t.UTC().Format(timeLayout)
}

func timeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(t)
	return &s
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, fmt.Errorf("parsing time %q: %w", *s, domain.ErrInvalidInput)
	}
	return &t, nil
}
