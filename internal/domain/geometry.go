package domain

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Polygon returns the footprint rectangle of the box. Corners run
// [l,b], [l,t], [r,t], [r,b] and the ring is closed.
func (b BBox) Polygon() orb.Polygon {
	l, bt, r, t := b[0], b[1], b[2], b[3]
	return orb.Polygon{orb.Ring{
		{l, bt}, {l, t}, {r, t}, {r, bt}, {l, bt},
	}}
}

// BBoxFromBound converts an orb bound.
func BBoxFromBound(bd orb.Bound) BBox {
	return BBox{bd.Min.X(), bd.Min.Y(), bd.Max.X(), bd.Max.Y()}
}

// GeometryOf wraps an orb geometry for JSON encoding.
func GeometryOf(g orb.Geometry) *geojson.Geometry {
	if g == nil {
		return nil
	}
	return geojson.NewGeometry(g)
}

// Points flattens every coordinate of g.
func Points(g orb.Geometry) []orb.Point {
	var out []orb.Point
	switch t := g.(type) {
	case nil:
	case orb.Point:
		out = append(out, t)
	case orb.MultiPoint:
		out = append(out, t...)
	case orb.LineString:
		out = append(out, t...)
	case orb.Ring:
		out = append(out, t...)
	case orb.MultiLineString:
		for _, ls := range t {
			out = append(out, ls...)
		}
	case orb.Polygon:
		for _, r := range t {
			out = append(out, r...)
		}
	case orb.MultiPolygon:
		for _, p := range t {
			for _, r := range p {
				out = append(out, r...)
			}
		}
	case orb.Collection:
		for _, sub := range t {
			out = append(out, Points(sub)...)
		}
	case orb.Bound:
		out = append(out, Points(t.ToPolygon())...)
	}
	return out
}

// ConvexHull returns the convex boundary of points as a closed polygon
// ring in counter-clockwise order. Fewer than three distinct points give a
// degenerate ring.
func ConvexHull(points []orb.Point) orb.Polygon {
	if len(points) == 0 {
		return nil
	}
	pts := append([]orb.Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})
	uniq := pts[:1]
	for _, p := range pts[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		ring := append(orb.Ring(nil), pts...)
		return orb.Polygon{append(ring, pts[0])}
	}

	// Monotone chain.
	hull := make([]orb.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// The last point equals the first, which closes the ring.
	return orb.Polygon{orb.Ring(hull)}
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}
