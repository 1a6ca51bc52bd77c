package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Defaults for a freshly created root catalog.
const (
	DefaultCatalogID          = "root-catalog"
	DefaultCatalogTitle       = "root-catalog-title"
	DefaultCatalogDescription = "root-catalog-desc"
	DefaultLicense            = "proprietary"
	STACVersion               = "1.0.0"
)

// ValidateID checks that a collection or item ID can name a directory of
// the persisted layout. kind names the node in the error.
func ValidateID(kind, id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%s id is required: %w", kind, ErrInvalidInput)
	case id == "." || id == "..":
		return fmt.Errorf("%s id %q is not a valid name: %w", kind, id, ErrInvalidInput)
	case strings.ContainsAny(id, "/\\"):
		return fmt.Errorf("%s id %q must not contain path separators: %w", kind, id, ErrInvalidInput)
	}
	return nil
}

// CatalogType selects how links are written on save.
type CatalogType string

const (
	CatalogSelfContained     CatalogType = "self-contained"
	CatalogRelativePublished CatalogType = "relative-published"
	CatalogAbsolutePublished CatalogType = "absolute-published"
)

// CatalogTypeNames lists the accepted layout names.
func CatalogTypeNames() []string {
	return []string{
		string(CatalogSelfContained),
		string(CatalogRelativePublished),
		string(CatalogAbsolutePublished),
	}
}

// ParseCatalogType accepts the layout names in kebab, snake or upper case
// (SELF_CONTAINED, self_contained, self-contained).
func ParseCatalogType(s string) (CatalogType, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	switch CatalogType(norm) {
	case CatalogSelfContained, CatalogRelativePublished, CatalogAbsolutePublished:
		return CatalogType(norm), nil
	}
	return "", &InvalidCatalogTypeError{Value: s}
}

// CatalogState tracks the managed tree's persistence lifecycle.
type CatalogState int

const (
	StateUninitialized CatalogState = iota
	StateLoaded
	StateDirty
	StateSaved
)

// String returns a string representation of the state.
func (s CatalogState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	case StateSaved:
		return "saved"
	default:
		return "unknown"
	}
}

// Catalog is the root of the tree. Collections are kept in insertion order.
type Catalog struct {
	ID          string
	Title       string
	Description string

	order       []string
	collections map[string]*Collection
}

// NewCatalog creates an empty catalog.
func NewCatalog(id, title, description string) *Catalog {
	return &Catalog{
		ID:          id,
		Title:       title,
		Description: description,
		collections: make(map[string]*Collection),
	}
}

// Collection returns a collection by ID.
func (c *Catalog) Collection(id string) (*Collection, bool) {
	col, ok := c.collections[id]
	return col, ok
}

// Collections returns the collections in insertion order.
func (c *Catalog) Collections() []*Collection {
	out := make([]*Collection, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.collections[id])
	}
	return out
}

// CollectionCount returns the number of collections.
func (c *Catalog) CollectionCount() int {
	return len(c.order)
}

// AddCollection attaches col unless a collection with the same ID exists.
// It reports whether col was attached.
func (c *Catalog) AddCollection(col *Collection) bool {
	if c.collections == nil {
		c.collections = make(map[string]*Collection)
	}
	if _, exists := c.collections[col.ID]; exists {
		return false
	}
	c.collections[col.ID] = col
	c.order = append(c.order, col.ID)
	return true
}

// RemoveCollection detaches a collection. It reports whether it existed.
func (c *Catalog) RemoveCollection(id string) bool {
	if _, ok := c.collections[id]; !ok {
		return false
	}
	delete(c.collections, id)
	c.order = removeString(c.order, id)
	return true
}

// Clone returns a deep copy of the tree.
func (c *Catalog) Clone() *Catalog {
	out := NewCatalog(c.ID, c.Title, c.Description)
	for _, col := range c.Collections() {
		out.AddCollection(col.Clone())
	}
	return out
}

// ItemCount returns the number of items over all collections.
func (c *Catalog) ItemCount() int {
	n := 0
	for _, col := range c.collections {
		n += col.ItemCount()
	}
	return n
}

// Collection groups items and carries their combined extent.
type Collection struct {
	ID          string
	Title       string
	Description string
	License     string
	Extent      Extent

	// base is the extent the collection had before any item was added.
	base  Extent
	order []string
	items map[string]*Item
}

// NewCollection creates an empty collection. A nil extent selects the
// default extent at now.
func NewCollection(id, title, description string, extent *Extent, now time.Time) *Collection {
	ext := DefaultExtent(now)
	if extent != nil {
		ext = extent.Clone()
	}
	return &Collection{
		ID:          id,
		Title:       title,
		Description: description,
		License:     DefaultLicense,
		Extent:      ext,
		base:        ext.Clone(),
		items:       make(map[string]*Item),
	}
}

// BaseExtent returns the extent used when the collection holds no items.
func (c *Collection) BaseExtent() Extent {
	return c.base.Clone()
}

// SetBaseExtent replaces the extent used when the collection is empty.
func (c *Collection) SetBaseExtent(ext Extent) {
	c.base = ext.Clone()
}

// Clone returns a deep copy of the collection and its items.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		License:     c.License,
		Extent:      c.Extent.Clone(),
		base:        c.base.Clone(),
		order:       append([]string(nil), c.order...),
		items:       make(map[string]*Item, len(c.items)),
	}
	for id, item := range c.items {
		out.items[id] = item.Clone()
	}
	return out
}

// Item returns an item by ID.
func (c *Collection) Item(id string) (*Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Items returns the items in insertion order.
func (c *Collection) Items() []*Item {
	out := make([]*Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// ItemCount returns the number of items.
func (c *Collection) ItemCount() int {
	return len(c.order)
}

// PutItem inserts item keyed by its ID, replacing any item with the same
// ID in place. The back-reference is set to this collection.
func (c *Collection) PutItem(item *Item) {
	if c.items == nil {
		c.items = make(map[string]*Item)
	}
	item.Collection = c.ID
	if _, exists := c.items[item.ID]; !exists {
		c.order = append(c.order, item.ID)
	}
	c.items[item.ID] = item
}

// RemoveItem deletes an item. It reports whether it existed.
func (c *Collection) RemoveItem(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	c.order = removeString(c.order, id)
	return true
}

// RecomputeExtent folds the extent from every current item. An empty
// collection returns to its base extent.
func (c *Collection) RecomputeExtent() {
	if ext, ok := FoldExtent(c.Items()); ok {
		c.Extent = ext
		return
	}
	c.Extent = c.base.Clone()
}

// ItemTime is either an instant or a start/end range.
type ItemTime struct {
	Datetime *time.Time
	Start    *time.Time
	End      *time.Time
}

// At creates an instant timestamp.
func At(t time.Time) ItemTime {
	t = t.UTC()
	return ItemTime{Datetime: &t}
}

// Between creates a range timestamp.
func Between(start, end *time.Time) ItemTime {
	return ItemTime{Start: utcPtr(start), End: utcPtr(end)}
}

// IsRange reports whether the timestamp is an interval.
func (t ItemTime) IsRange() bool {
	return t.Datetime == nil && (t.Start != nil || t.End != nil)
}

// Interval returns the temporal extent contributed by the timestamp.
func (t ItemTime) Interval() Interval {
	if t.Datetime != nil {
		return Instant(*t.Datetime)
	}
	return NewInterval(t.Start, t.End)
}

// Item is one dataset's catalog entry.
type Item struct {
	ID         string
	Geometry   *geojson.Geometry
	BBox       BBox
	Time       ItemTime
	Properties Properties
	Assets     map[string]*Asset
	Extensions []string
	// Collection is the owning collection's ID. It is never followed to
	// mutate the parent.
	Collection string
}

// Clone returns a deep enough copy for independent mutation of
// properties and assets.
func (i *Item) Clone() *Item {
	out := *i
	out.Properties = i.Properties.Clone()
	out.Assets = make(map[string]*Asset, len(i.Assets))
	for k, a := range i.Assets {
		cp := *a
		cp.Roles = append([]string(nil), a.Roles...)
		out.Assets[k] = &cp
	}
	out.Extensions = append([]string(nil), i.Extensions...)
	return &out
}

// AssetKeys returns the asset keys sorted.
func (i *Item) AssetKeys() []string {
	return sortedKeys(i.Assets)
}

// Asset is a file reference inside an item.
type Asset struct {
	Href        string
	MediaType   MediaType
	Roles       []string
	Title       string
	Description string
}

// HasRole checks whether the asset carries role.
func (a *Asset) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
