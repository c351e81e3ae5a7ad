package swath

import (
	"fmt"
	"math"
)

// GeolocationGrid holds per-pixel latitude and longitude in degrees,
// row-major with Height rows of Width pixels.
type GeolocationGrid struct {
	Height int
	Width  int
	Lat    []float64
	Lon    []float64
}

// NewGeolocationGrid allocates a zeroed grid of the given shape.
func NewGeolocationGrid(height, width int) *GeolocationGrid {
	return &GeolocationGrid{
		Height: height,
		Width:  width,
		Lat:    make([]float64, height*width),
		Lon:    make([]float64, height*width),
	}
}

// Validate checks the lat and lon arrays against the declared shape.
func (g *GeolocationGrid) Validate() error {
	if g.Height <= 0 || g.Width <= 0 {
		return &EmptySourceError{}
	}
	n := g.Height * g.Width
	if len(g.Lat) != n {
		return &ShapeMismatchError{What: "latitude", Expected: [2]int{g.Height, g.Width}, Got: shapeOf(len(g.Lat), g.Width)}
	}
	if len(g.Lon) != n {
		return &ShapeMismatchError{What: "longitude", Expected: [2]int{g.Height, g.Width}, Got: shapeOf(len(g.Lon), g.Width)}
	}
	return nil
}

// At returns the latitude and longitude of pixel (row, col).
func (g *GeolocationGrid) At(row, col int) (lat, lon float64) {
	i := row*g.Width + col
	return g.Lat[i], g.Lon[i]
}

// Bounds returns the min/max longitude and latitude over all finite pixels.
func (g *GeolocationGrid) Bounds() (minLon, minLat, maxLon, maxLat float64, err error) {
	minLon, minLat = math.Inf(1), math.Inf(1)
	maxLon, maxLat = math.Inf(-1), math.Inf(-1)
	for i := range g.Lat {
		lat, lon := g.Lat[i], g.Lon[i]
		if !isFinite(lat) || !isFinite(lon) {
			continue
		}
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
	}
	if math.IsInf(minLon, 1) {
		return 0, 0, 0, 0, fmt.Errorf("geolocation grid has no finite coordinates")
	}
	return
}

// Image is a single channel of float32 samples. NaN marks no data.
type Image struct {
	Height int
	Width  int
	Data   []float32
}

// NewImage allocates an image filled with the no data sentinel.
func NewImage(height, width int) *Image {
	img := &Image{Height: height, Width: width, Data: make([]float32, height*width)}
	nan := float32(math.NaN())
	for i := range img.Data {
		img.Data[i] = nan
	}
	return img
}

// Validate checks the data length against the declared shape.
func (img *Image) Validate() error {
	if img.Height <= 0 || img.Width <= 0 || len(img.Data) == 0 {
		return &EmptySourceError{}
	}
	if len(img.Data) != img.Height*img.Width {
		return &ShapeMismatchError{What: "data", Expected: [2]int{img.Height, img.Width}, Got: shapeOf(len(img.Data), img.Width)}
	}
	return nil
}

// Stats counts valid and no data cells.
func (img *Image) Stats() (valid, noData int) {
	for _, v := range img.Data {
		if math.IsNaN(float64(v)) {
			noData++
		} else {
			valid++
		}
	}
	return
}

func shapeOf(n, width int) [2]int {
	if width <= 0 {
		return [2]int{0, n}
	}
	return [2]int{n / width, width}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
