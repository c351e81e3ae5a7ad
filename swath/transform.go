package swath

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ControlPoint ties a pixel coordinate to a geographic coordinate.
type ControlPoint struct {
	Row float64
	Col float64
	Lon float64
	Lat float64
}

// AffineTransform follows the GDAL geotransform convention:
//
//	x = t[0] + col*t[1] + row*t[2]
//	y = t[3] + col*t[4] + row*t[5]
//
// where x is longitude and y is latitude.
type AffineTransform [6]float64

// PixelOffset selects where inside a pixel a transform is evaluated.
type PixelOffset float64

const (
	OffsetCorner PixelOffset = 0
	OffsetCenter PixelOffset = 0.5
)

// relative tolerance below which an area or determinant counts as zero
const degenerateTolerance = 1e-10

// CornerPoints returns the control points at (0,0), (0,w-1), (h-1,0) and
// (h-1,w-1) of the grid.
func CornerPoints(g *GeolocationGrid) ([4]ControlPoint, error) {
	var pts [4]ControlPoint
	if err := g.Validate(); err != nil {
		return pts, err
	}
	corners := [4][2]int{{0, 0}, {0, g.Width - 1}, {g.Height - 1, 0}, {g.Height - 1, g.Width - 1}}
	for i, rc := range corners {
		lat, lon := g.At(rc[0], rc[1])
		if !isFinite(lat) || !isFinite(lon) {
			return pts, &DegenerateGeometryError{Reason: fmt.Sprintf("corner (%d,%d) has no geolocation", rc[0], rc[1])}
		}
		pts[i] = ControlPoint{Row: float64(rc[0]), Col: float64(rc[1]), Lon: lon, Lat: lat}
	}
	return pts, nil
}

// BuildTransform fits the affine transform through four control points in
// the least-squares sense. The fit is exact when the points form a
// parallelogram in both pixel and geographic space.
func BuildTransform(points [4]ControlPoint) (AffineTransform, error) {
	var t AffineTransform

	pix := make([][2]float64, len(points))
	geo := make([][2]float64, len(points))
	for i, p := range points {
		pix[i] = [2]float64{p.Col, p.Row}
		geo[i] = [2]float64{p.Lon, p.Lat}
	}
	if collinear(pix) {
		return t, &DegenerateGeometryError{Reason: "pixel control points are collinear"}
	}
	if collinear(geo) {
		return t, &DegenerateGeometryError{Reason: "geographic control points are collinear"}
	}

	a := mat.NewDense(len(points), 3, nil)
	b := mat.NewDense(len(points), 2, nil)
	for i, p := range points {
		a.Set(i, 0, 1)
		a.Set(i, 1, p.Col)
		a.Set(i, 2, p.Row)
		b.Set(i, 0, p.Lon)
		b.Set(i, 1, p.Lat)
	}

	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return t, &DegenerateGeometryError{Reason: err.Error()}
	}
	t = AffineTransform{
		x.At(0, 0), x.At(1, 0), x.At(2, 0),
		x.At(0, 1), x.At(1, 1), x.At(2, 1),
	}

	scale := math.Abs(t[1]*t[5]) + math.Abs(t[2]*t[4])
	if scale == 0 || math.Abs(t.Det()) <= degenerateTolerance*scale {
		return t, &DegenerateGeometryError{Reason: fmt.Sprintf("transform determinant %g is zero", t.Det())}
	}
	return t, nil
}

// Apply maps pixel (row, col) to (x, y).
func (t AffineTransform) Apply(row, col float64) (x, y float64) {
	x = t[0] + col*t[1] + row*t[2]
	y = t[3] + col*t[4] + row*t[5]
	return
}

// Det is the determinant of the linear part.
func (t AffineTransform) Det() float64 {
	return t[1]*t[5] - t[2]*t[4]
}

// Invert returns the transform mapping (x, y) back to (col, row) in the
// same coefficient layout.
func (t AffineTransform) Invert() (AffineTransform, error) {
	det := t.Det()
	if det == 0 || !isFinite(det) {
		return AffineTransform{}, &DegenerateGeometryError{Reason: "transform is not invertible"}
	}
	idet := 1 / det
	inv := AffineTransform{0, t[5] * idet, -t[2] * idet, 0, -t[4] * idet, t[1] * idet}
	inv[0] = -(inv[1]*t[0] + inv[2]*t[3])
	inv[3] = -(inv[4]*t[0] + inv[5]*t[3])
	return inv, nil
}

// RowCol maps (x, y) to fractional pixel coordinates.
func (t AffineTransform) RowCol(x, y float64) (row, col float64, err error) {
	inv, err := t.Invert()
	if err != nil {
		return 0, 0, err
	}
	col = inv[0] + x*inv[1] + y*inv[2]
	row = inv[3] + x*inv[4] + y*inv[5]
	return row, col, nil
}

// TargetGrid evaluates the transform over every (row, col) of a height x
// width index mesh.
func TargetGrid(t AffineTransform, height, width int, offset PixelOffset) *GeolocationGrid {
	g := NewGeolocationGrid(height, width)
	off := float64(offset)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			x, y := t.Apply(float64(row)+off, float64(col)+off)
			g.Lon[row*width+col] = x
			g.Lat[row*width+col] = y
		}
	}
	return g
}

// ResidualStats summarises how far the affine grid departs from the true
// geolocation, in degrees.
type ResidualStats struct {
	MaxLat  float64 `json:"max_lat"`
	MaxLon  float64 `json:"max_lon"`
	MeanLat float64 `json:"mean_lat"`
	MeanLon float64 `json:"mean_lon"`
}

// Residuals compares g against the transform evaluated on the same mesh.
func Residuals(g *GeolocationGrid, t AffineTransform, offset PixelOffset) (ResidualStats, error) {
	var stats ResidualStats
	if err := g.Validate(); err != nil {
		return stats, err
	}
	dLat := make([]float64, 0, len(g.Lat))
	dLon := make([]float64, 0, len(g.Lon))
	off := float64(offset)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			lat, lon := g.At(row, col)
			if !isFinite(lat) || !isFinite(lon) {
				continue
			}
			x, y := t.Apply(float64(row)+off, float64(col)+off)
			dLat = append(dLat, math.Abs(lat-y))
			dLon = append(dLon, math.Abs(lon-x))
		}
	}
	if len(dLat) == 0 {
		return stats, nil
	}
	stats.MaxLat = floats.Max(dLat)
	stats.MaxLon = floats.Max(dLon)
	stats.MeanLat = floats.Sum(dLat) / float64(len(dLat))
	stats.MeanLon = floats.Sum(dLon) / float64(len(dLon))
	return stats, nil
}

// collinear reports whether every triangle formed by the points has
// negligible area relative to the spread of the points.
func collinear(pts [][2]float64) bool {
	spread := 0.0
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			dx, dy := pts[j][0]-pts[i][0], pts[j][1]-pts[i][1]
			spread = math.Max(spread, dx*dx+dy*dy)
		}
	}
	if spread == 0 {
		return true
	}
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				ux, uy := pts[j][0]-pts[i][0], pts[j][1]-pts[i][1]
				vx, vy := pts[k][0]-pts[i][0], pts[k][1]-pts[i][1]
				if math.Abs(ux*vy-uy*vx) > degenerateTolerance*spread {
					return false
				}
			}
		}
	}
	return true
}
