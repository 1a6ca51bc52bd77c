// Package domain contains the catalog entities and value objects.
package domain

import (
	"fmt"
	"math"
	"time"
)

// BBox is an axis-aligned bounding box ordered as
// [min_x, min_y, max_x, max_y].
type BBox [4]float64

// GlobalBBox covers the whole WGS 84 domain.
var GlobalBBox = BBox{-180, -90, 180, 90}

// NewBBox creates a bounding box from its components.
func NewBBox(minX, minY, maxX, maxY float64) BBox {
	return BBox{minX, minY, maxX, maxY}
}

// BBoxFromSlice converts a JSON style bbox. Only the 2D form is accepted;
// 3D boxes are reduced to their horizontal components.
func BBoxFromSlice(v []float64) (BBox, error) {
	switch len(v) {
	case 4:
		return BBox{v[0], v[1], v[2], v[3]}, nil
	case 6:
		return BBox{v[0], v[1], v[3], v[4]}, nil
	default:
		return BBox{}, fmt.Errorf("%w: expected 4 or 6 values, got %d", ErrInvalidBBox, len(v))
	}
}

func (b BBox) MinX() float64 { return b[0] }
func (b BBox) MinY() float64 { return b[1] }
func (b BBox) MaxX() float64 { return b[2] }
func (b BBox) MaxY() float64 { return b[3] }

// IsValid checks if the box has ordered, finite bounds.
func (b BBox) IsValid() bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b[0] <= b[2] && b[1] <= b[3]
}

// Contains checks whether a point lies within the box.
func (b BBox) Contains(x, y float64) bool {
	return x >= b[0] && x <= b[2] && y >= b[1] && y <= b[3]
}

// Width returns the width of the box.
func (b BBox) Width() float64 {
	return math.Abs(b[2] - b[0])
}

// Height returns the height of the box.
func (b BBox) Height() float64 {
	return math.Abs(b[3] - b[1])
}

// Union returns the component-wise min of mins and max of maxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		math.Min(b[0], o[0]),
		math.Min(b[1], o[1]),
		math.Max(b[2], o[2]),
		math.Max(b[3], o[3]),
	}
}

// Slice returns the box as a JSON friendly slice.
func (b BBox) Slice() []float64 {
	return []float64{b[0], b[1], b[2], b[3]}
}

// Interval is a temporal range. A nil bound is open (unbounded).
type Interval struct {
	Start *time.Time
	End   *time.Time
}

// Instant returns a degenerate interval [t, t].
func Instant(t time.Time) Interval {
	t = t.UTC()
	return Interval{Start: &t, End: &t}
}

// NewInterval creates an interval; nil bounds stay open.
func NewInterval(start, end *time.Time) Interval {
	return Interval{Start: utcPtr(start), End: utcPtr(end)}
}

// Union returns the earliest start and the latest end. An open bound on
// either side wins.
func (i Interval) Union(o Interval) Interval {
	out := Interval{}
	if i.Start != nil && o.Start != nil {
		s := *i.Start
		if o.Start.Before(s) {
			s = *o.Start
		}
		out.Start = &s
	}
	if i.End != nil && o.End != nil {
		e := *i.End
		if o.End.After(e) {
			e = *o.End
		}
		out.End = &e
	}
	return out
}

// Equal compares both bounds, treating nil as its own value.
func (i Interval) Equal(o Interval) bool {
	return timeEqual(i.Start, o.Start) && timeEqual(i.End, o.End)
}

// Extent is a collection's spatial and temporal coverage. The first entry
// of each slice is the overall extent.
type Extent struct {
	Spatial  []BBox
	Temporal []Interval
}

// DefaultExtent is used when no data has ever been supplied.
func DefaultExtent(now time.Time) Extent {
	return Extent{
		Spatial:  []BBox{GlobalBBox},
		Temporal: []Interval{Instant(now)},
	}
}

// BBox returns the overall bounding box.
func (e Extent) BBox() (BBox, bool) {
	if len(e.Spatial) == 0 {
		return BBox{}, false
	}
	return e.Spatial[0], true
}

// Interval returns the overall temporal interval.
func (e Extent) Interval() (Interval, bool) {
	if len(e.Temporal) == 0 {
		return Interval{}, false
	}
	return e.Temporal[0], true
}

// Clone returns a deep copy.
func (e Extent) Clone() Extent {
	out := Extent{
		Spatial:  append([]BBox(nil), e.Spatial...),
		Temporal: make([]Interval, len(e.Temporal)),
	}
	for i, iv := range e.Temporal {
		out.Temporal[i] = NewInterval(iv.Start, iv.End)
	}
	return out
}

// Equal reports whether both extents carry the same boxes and intervals.
func (e Extent) Equal(o Extent) bool {
	if len(e.Spatial) != len(o.Spatial) || len(e.Temporal) != len(o.Temporal) {
		return false
	}
	for i := range e.Spatial {
		if e.Spatial[i] != o.Spatial[i] {
			return false
		}
	}
	for i := range e.Temporal {
		if !e.Temporal[i].Equal(o.Temporal[i]) {
			return false
		}
	}
	return true
}

// Widen merges one more bbox and interval into current. A nil current is
// seeded with exactly the new values. The result does not depend on the
// order in which boxes and intervals are applied.
func Widen(current *Extent, bbox BBox, interval Interval) Extent {
	if current == nil {
		return Extent{
			Spatial:  []BBox{bbox},
			Temporal: []Interval{NewInterval(interval.Start, interval.End)},
		}
	}

	out := current.Clone()
	if len(out.Spatial) == 0 {
		out.Spatial = []BBox{bbox}
	} else {
		out.Spatial[0] = out.Spatial[0].Union(bbox)
	}
	if len(out.Temporal) == 0 {
		out.Temporal = []Interval{NewInterval(interval.Start, interval.End)}
	} else {
		out.Temporal[0] = out.Temporal[0].Union(interval)
	}
	return out
}

// FoldExtent widens over every item. ok is false when no item contributes.
func FoldExtent(items []*Item) (ext Extent, ok bool) {
	var acc *Extent
	for _, item := range items {
		if item == nil {
			continue
		}
		next := Widen(acc, item.BBox, item.Time.Interval())
		acc = &next
	}
	if acc == nil {
		return Extent{}, false
	}
	return *acc, true
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
