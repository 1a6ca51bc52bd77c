package domain

import (
	"math/rand"
	"testing"
	"time"
)

func TestWidenSeedsFromNil(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	bbox := NewBBox(10, 20, 30, 40)

	got := Widen(nil, bbox, Instant(ts))

	if b, _ := got.BBox(); b != bbox {
		t.Errorf("BBox() = %v, want %v", b, bbox)
	}
	iv, _ := got.Interval()
	if !iv.Equal(Instant(ts)) {
		t.Errorf("Interval() = %v, want [%v, %v]", iv, ts, ts)
	}
}

func TestWidenMergesComponentWise(t *testing.T) {
	t1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	ext := Widen(nil, NewBBox(0, 0, 10, 10), Instant(t2))
	ext = Widen(&ext, NewBBox(-5, 2, 8, 20), Instant(t1))

	want := NewBBox(-5, 0, 10, 20)
	if b, _ := ext.BBox(); b != want {
		t.Errorf("BBox() = %v, want %v", b, want)
	}
	iv, _ := ext.Interval()
	if !iv.Start.Equal(t1) || !iv.End.Equal(t2) {
		t.Errorf("Interval() = [%v, %v], want [%v, %v]", iv.Start, iv.End, t1, t2)
	}
}

func TestWidenDoesNotMutateCurrent(t *testing.T) {
	ts := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	ext := Widen(nil, NewBBox(0, 0, 1, 1), Instant(ts))

	_ = Widen(&ext, NewBBox(-10, -10, 10, 10), Instant(ts.Add(time.Hour)))

	if b, _ := ext.BBox(); b != NewBBox(0, 0, 1, 1) {
		t.Errorf("current extent was modified: %v", b)
	}
}

func TestWidenOpenBoundsDominate(t *testing.T) {
	ts := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	end := ts.Add(24 * time.Hour)

	tests := []struct {
		name      string
		a, b      Interval
		wantStart bool
		wantEnd   bool
	}{
		{"both closed", Instant(ts), Instant(end), true, true},
		{"open start", NewInterval(nil, &ts), Instant(end), false, true},
		{"open end", Instant(ts), NewInterval(&ts, nil), true, false},
		{"fully open", Interval{}, Instant(ts), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab := Widen(nil, GlobalBBox, tt.a)
			ab = Widen(&ab, GlobalBBox, tt.b)
			ba := Widen(nil, GlobalBBox, tt.b)
			ba = Widen(&ba, GlobalBBox, tt.a)

			iv, _ := ab.Interval()
			if (iv.Start != nil) != tt.wantStart {
				t.Errorf("start bounded = %v, want %v", iv.Start != nil, tt.wantStart)
			}
			if (iv.End != nil) != tt.wantEnd {
				t.Errorf("end bounded = %v, want %v", iv.End != nil, tt.wantEnd)
			}
			if !ab.Equal(ba) {
				t.Error("widening depends on order")
			}
		})
	}
}

func TestWidenOrderIndependence(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(42))

	type sample struct {
		bbox BBox
		ts   time.Time
	}
	samples := make([]sample, 12)
	want := BBox{}
	for i := range samples {
		x := rng.Float64()*300 - 150
		y := rng.Float64()*160 - 80
		samples[i] = sample{
			bbox: NewBBox(x, y, x+rng.Float64()*20, y+rng.Float64()*10),
			ts:   base.Add(time.Duration(rng.Intn(1000)) * time.Hour),
		}
		if i == 0 {
			want = samples[i].bbox
		} else {
			want = want.Union(samples[i].bbox)
		}
	}

	var reference *Extent
	for round := 0; round < 20; round++ {
		order := rng.Perm(len(samples))
		var acc *Extent
		for _, idx := range order {
			next := Widen(acc, samples[idx].bbox, Instant(samples[idx].ts))
			acc = &next
		}

		if b, _ := acc.BBox(); b != want {
			t.Fatalf("round %d: BBox() = %v, want %v", round, b, want)
		}
		if reference == nil {
			reference = acc
			continue
		}
		if !acc.Equal(*reference) {
			t.Fatalf("round %d: extent differs from first ordering", round)
		}
	}
}

func TestFoldExtent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if _, ok := FoldExtent(nil); ok {
		t.Error("FoldExtent(nil) should report no contribution")
	}

	items := []*Item{
		{ID: "a", BBox: NewBBox(0, 0, 1, 1), Time: At(ts)},
		nil,
		{ID: "b", BBox: NewBBox(5, 5, 6, 6), Time: At(ts.Add(time.Hour))},
	}
	ext, ok := FoldExtent(items)
	if !ok {
		t.Fatal("FoldExtent should report a contribution")
	}
	if b, _ := ext.BBox(); b != NewBBox(0, 0, 6, 6) {
		t.Errorf("BBox() = %v", b)
	}
}

func TestDefaultExtent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ext := DefaultExtent(now)

	if b, _ := ext.BBox(); b != GlobalBBox {
		t.Errorf("BBox() = %v, want %v", b, GlobalBBox)
	}
	iv, _ := ext.Interval()
	if !iv.Start.Equal(now) || !iv.End.Equal(now) {
		t.Errorf("Interval() = [%v, %v], want [%v, %v]", iv.Start, iv.End, now, now)
	}
}

func TestBBoxFromSlice(t *testing.T) {
	tests := []struct {
		name    string
		in      []float64
		want    BBox
		wantErr bool
	}{
		{"2d", []float64{1, 2, 3, 4}, NewBBox(1, 2, 3, 4), false},
		{"3d", []float64{1, 2, 0, 3, 4, 100}, NewBBox(1, 2, 3, 4), false},
		{"short", []float64{1, 2}, BBox{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BBoxFromSlice(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BBoxFromSlice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("BBoxFromSlice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBBoxIsValid(t *testing.T) {
	if !NewBBox(-1, -1, 1, 1).IsValid() {
		t.Error("ordered box should be valid")
	}
	if NewBBox(1, -1, -1, 1).IsValid() {
		t.Error("inverted box should be invalid")
	}
	if !GlobalBBox.Contains(0, 0) {
		t.Error("global box should contain the origin")
	}
	if GlobalBBox.Width() != 360 || GlobalBBox.Height() != 180 {
		t.Errorf("global box size = %vx%v", GlobalBBox.Width(), GlobalBBox.Height())
	}
}
