package swath

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/golang/geo/s2"
)

// EarthRadius is the mean Earth radius in metres.
const EarthRadius = 6371008.8

// pointPad widens point bounds so they intersect query boxes they touch.
const pointPad = 1e-9

type sample struct {
	geom.Point
	index int
}

func (s *sample) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: s.X - pointPad, Y: s.Y - pointPad},
		Max: geom.Point{X: s.X + pointPad, Y: s.Y + pointPad},
	}
}

// Neighbor is a source sample found by a radius query.
type Neighbor struct {
	Index    int
	Distance float64
}

// SpatialIndex answers great-circle radius queries over the pixels of a
// geolocation grid. An index belongs to a single conversion.
type SpatialIndex struct {
	tree *rtree.Rtree
	grid *GeolocationGrid
	size int
}

// NewSpatialIndex indexes every pixel of g with finite coordinates for
// which keep returns true. A nil keep indexes all of them.
func NewSpatialIndex(g *GeolocationGrid, keep func(i int) bool) *SpatialIndex {
	idx := &SpatialIndex{tree: rtree.NewTree(25, 50), grid: g}
	for i := range g.Lat {
		lat, lon := g.Lat[i], g.Lon[i]
		if !isFinite(lat) || !isFinite(lon) {
			continue
		}
		if keep != nil && !keep(i) {
			continue
		}
		idx.tree.Insert(&sample{Point: geom.Point{X: lon, Y: lat}, index: i})
		idx.size++
	}
	return idx
}

// Len is the number of indexed samples.
func (idx *SpatialIndex) Len() int {
	return idx.size
}

// Within returns the samples no further than radius metres from
// (lat, lon), ordered by source index.
func (idx *SpatialIndex) Within(lat, lon, radius float64) []Neighbor {
	if idx.size == 0 || !isFinite(lat) || !isFinite(lon) {
		return nil
	}
	origin := s2.LatLngFromDegrees(lat, lon)
	var found []Neighbor
	for _, g := range idx.tree.SearchIntersect(searchBounds(lat, lon, radius)) {
		s := g.(*sample)
		d := origin.Distance(s2.LatLngFromDegrees(s.Y, s.X)).Radians() * EarthRadius
		if d <= radius {
			found = append(found, Neighbor{Index: s.index, Distance: d})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Index < found[j].Index })
	return found
}

// searchBounds returns a lon/lat box containing every point within radius
// metres of (lat, lon). Longitudes are not wrapped.
func searchBounds(lat, lon, radius float64) *geom.Bounds {
	dLat := radius / EarthRadius * 180 / math.Pi
	minLat := math.Max(lat-dLat, -90)
	maxLat := math.Min(lat+dLat, 90)

	dLon := 180.0
	edge := math.Max(math.Abs(minLat), math.Abs(maxLat))
	if edge < 90 {
		dLon = math.Min(dLat/math.Cos(edge*math.Pi/180), 180)
	}
	return &geom.Bounds{
		Min: geom.Point{X: lon - dLon, Y: minLat},
		Max: geom.Point{X: lon + dLon, Y: maxLat},
	}
}
