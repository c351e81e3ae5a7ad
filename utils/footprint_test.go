package utils

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/nci/swathgrid/swath"
)

func squareGrid() *swath.GeolocationGrid {
	g := swath.NewGeolocationGrid(3, 3)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			g.Lat[row*3+col] = 10 - float64(row)
			g.Lon[row*3+col] = 20 + float64(col)
		}
	}
	return g
}

func TestNewFootprint(t *testing.T) {
	fp, err := NewFootprint(squareGrid(), 1)
	if err != nil {
		t.Fatal(err)
	}
	ring := fp.Polygon[0]
	if len(ring) != 9 || ring[0] != ring[len(ring)-1] {
		t.Fatalf("expected a closed ring of 8 edge pixels, got %v", ring)
	}
	if b := fp.Bounds(); b != [4]float64{20, 8, 22, 10} {
		t.Errorf("unexpected bounds %v", b)
	}
	if fp.Center != (orb.Point{21, 9}) {
		t.Errorf("unexpected centre %v", fp.Center)
	}

	wkt, err := fp.WKT()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.ToUpper(wkt), "POLYGON") {
		t.Errorf("unexpected WKT %s", wkt)
	}

	gj, err := fp.GeoJSON(map[string]interface{}{"channel": "red"})
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(gj, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["type"] != "Feature" {
		t.Errorf("unexpected GeoJSON %s", gj)
	}
}

func TestNewFootprintSkipsMissingGeolocation(t *testing.T) {
	g := squareGrid()
	g.Lat[1] = math.NaN()
	fp, err := NewFootprint(g, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(fp.Polygon[0]) != 8 {
		t.Errorf("expected 7 edge pixels plus closure, got %v", fp.Polygon[0])
	}

	all := swath.NewGeolocationGrid(2, 2)
	for i := range all.Lat {
		all.Lat[i] = math.NaN()
	}
	if _, err := NewFootprint(all, 1); err == nil {
		t.Error("expected a footprint without geolocation to fail")
	}
}
