package domain

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestBBoxPolygon(t *testing.T) {
	poly := NewBBox(1, 2, 3, 4).Polygon()

	want := orb.Ring{{1, 2}, {1, 4}, {3, 4}, {3, 2}, {1, 2}}
	if len(poly) != 1 || !poly[0].Equal(want) {
		t.Errorf("Polygon() = %v, want %v", poly, want)
	}
}

func TestConvexHull(t *testing.T) {
	points := []orb.Point{
		{0, 0}, {4, 0}, {4, 4}, {0, 4},
		{2, 2}, {1, 3}, {3, 1}, // interior
		{4, 0}, // duplicate
	}

	hull := ConvexHull(points)
	if len(hull) != 1 {
		t.Fatalf("hull has %d rings", len(hull))
	}
	ring := hull[0]
	if !ring.Closed() {
		t.Error("hull ring should be closed")
	}
	if len(ring) != 5 {
		t.Errorf("hull ring has %d points, want 5: %v", len(ring), ring)
	}
	if got := BBoxFromBound(ring.Bound()); got != NewBBox(0, 0, 4, 4) {
		t.Errorf("hull bounds = %v", got)
	}
	for _, p := range ring {
		if p == (orb.Point{2, 2}) {
			t.Error("interior point on hull")
		}
	}
}

func TestConvexHullDegenerate(t *testing.T) {
	if ConvexHull(nil) != nil {
		t.Error("ConvexHull(nil) should be nil")
	}

	hull := ConvexHull([]orb.Point{{1, 1}, {1, 1}})
	if len(hull) != 1 || len(hull[0]) != 2 {
		t.Errorf("single point hull = %v", hull)
	}

	line := ConvexHull([]orb.Point{{0, 0}, {1, 1}, {2, 2}})
	if got := BBoxFromBound(line.Bound()); got != NewBBox(0, 0, 2, 2) {
		t.Errorf("collinear hull bounds = %v", got)
	}
}

func TestPoints(t *testing.T) {
	mp := orb.MultiPolygon{
		NewBBox(0, 0, 1, 1).Polygon(),
		NewBBox(2, 2, 3, 3).Polygon(),
	}
	if got := len(Points(mp)); got != 10 {
		t.Errorf("Points(multipolygon) = %d, want 10", got)
	}

	coll := orb.Collection{orb.Point{1, 1}, orb.LineString{{0, 0}, {1, 0}}}
	if got := len(Points(coll)); got != 3 {
		t.Errorf("Points(collection) = %d, want 3", got)
	}

	if Points(nil) != nil {
		t.Error("Points(nil) should be nil")
	}
}
