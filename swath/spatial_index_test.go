package swath

import (
	"math"
	"testing"
)

func TestSpatialIndexWithin(t *testing.T) {
	g := &GeolocationGrid{
		Height: 1,
		Width:  5,
		Lat:    []float64{0, 1, 0, 60, math.NaN()},
		Lon:    []float64{0, 0, 1, 0, 0},
	}
	idx := NewSpatialIndex(g, nil)
	if idx.Len() != 4 {
		t.Fatalf("expected 4 indexed samples, got %d", idx.Len())
	}

	oneDegree := EarthRadius * math.Pi / 180

	found := idx.Within(0, 0, oneDegree+1)
	if len(found) != 3 {
		t.Fatalf("expected 3 neighbours, got %v", found)
	}
	for i, want := range []int{0, 1, 2} {
		if found[i].Index != want {
			t.Errorf("neighbour %d: expected index %d, got %d", i, want, found[i].Index)
		}
	}
	if found[0].Distance != 0 {
		t.Errorf("expected zero distance to itself, got %v", found[0].Distance)
	}
	if math.Abs(found[1].Distance-oneDegree) > 1e-6 {
		t.Errorf("expected %v m, got %v", oneDegree, found[1].Distance)
	}

	found = idx.Within(0, 0, oneDegree-1)
	if len(found) != 1 || found[0].Index != 0 {
		t.Errorf("expected only the origin, got %v", found)
	}
}

func TestSpatialIndexHighLatitude(t *testing.T) {
	g := &GeolocationGrid{Height: 1, Width: 2, Lat: []float64{89.9, 89.9}, Lon: []float64{0, 90}}
	idx := NewSpatialIndex(g, nil)
	// the two points are about 15.7 km apart across the pole cap
	found := idx.Within(89.9, 0, 20000)
	if len(found) != 2 {
		t.Errorf("expected both samples near the pole, got %v", found)
	}
}

func TestSpatialIndexKeepFilter(t *testing.T) {
	g := &GeolocationGrid{Height: 1, Width: 3, Lat: []float64{0, 0, 0}, Lon: []float64{0, 0, 0}}
	idx := NewSpatialIndex(g, func(i int) bool { return i != 1 })
	found := idx.Within(0, 0, 10)
	if len(found) != 2 || found[0].Index != 0 || found[1].Index != 2 {
		t.Errorf("expected indexes 0 and 2, got %v", found)
	}
}
