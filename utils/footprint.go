package utils

import (
	"encoding/json"
	"fmt"
	"math"

	geo "github.com/nci/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/nci/swathgrid/swath"
)

// Footprint is the outline of a swath traced along its edge pixels.
type Footprint struct {
	Polygon orb.Polygon
	Bound   orb.Bound
	Center  orb.Point
}

// NewFootprint walks the grid border clockwise from (0,0) taking every
// step-th pixel. Pixels without geolocation are skipped.
func NewFootprint(g *swath.GeolocationGrid, step int) (*Footprint, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if step < 1 {
		step = 1
	}

	var ring orb.Ring
	add := func(row, col int) {
		lat, lon := g.At(row, col)
		if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
			return
		}
		p := orb.Point{lon, lat}
		if len(ring) > 0 && ring[len(ring)-1] == p {
			return
		}
		ring = append(ring, p)
	}

	h, w := g.Height, g.Width
	for col := 0; col < w-1; col += step {
		add(0, col)
	}
	for row := 0; row < h-1; row += step {
		add(row, w-1)
	}
	for col := w - 1; col > 0; col -= step {
		add(h-1, col)
	}
	for row := h - 1; row > 0; row -= step {
		add(row, 0)
	}
	if len(ring) < 3 {
		return nil, fmt.Errorf("swath footprint needs at least 3 distinct edge points, got %d", len(ring))
	}
	center := AverageOfCoordinates(ring)
	ring = append(ring, ring[0])

	poly := orb.Polygon{ring}
	return &Footprint{Polygon: poly, Bound: poly.Bound(), Center: center}, nil
}

// AverageOfCoordinates is the arithmetic mean of the points.
func AverageOfCoordinates(points []orb.Point) orb.Point {
	var x, y float64
	for _, p := range points {
		x += p[0]
		y += p[1]
	}
	n := float64(len(points))
	if n == 0 {
		return orb.Point{}
	}
	return orb.Point{x / n, y / n}
}

// Bounds returns min lon, min lat, max lon, max lat.
func (f *Footprint) Bounds() [4]float64 {
	return [4]float64{f.Bound.Min[0], f.Bound.Min[1], f.Bound.Max[0], f.Bound.Max[1]}
}

// GeoJSON encodes the footprint as a Feature carrying props.
func (f *Footprint) GeoJSON(props map[string]interface{}) ([]byte, error) {
	feat := geojson.NewFeature(f.Polygon)
	for k, v := range props {
		feat.Properties[k] = v
	}
	return json.Marshal(feat)
}

// WKT encodes the footprint polygon as well known text.
func (f *Footprint) WKT() (string, error) {
	gj, err := f.GeoJSON(nil)
	if err != nil {
		return "", err
	}
	var feat geo.Feature
	if err := json.Unmarshal(gj, &feat); err != nil {
		return "", fmt.Errorf("Problem unmarshalling GeoJSON object: %v", err)
	}
	return feat.Geometry.MarshalWKT(), nil
}
