package swath

import "fmt"

// DegenerateGeometryError is returned when control points do not span a
// non-zero area quadrilateral.
type DegenerateGeometryError struct {
	Reason string
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate swath geometry: %s", e.Reason)
}

// EmptySourceError is returned when a resampling source has no pixels.
type EmptySourceError struct{}

func (e *EmptySourceError) Error() string {
	return "empty source swath"
}

// ShapeMismatchError is returned when arrays that must share a shape do not.
type ShapeMismatchError struct {
	What     string
	Expected [2]int
	Got      [2]int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch for %s: expected %dx%d, got %dx%d", e.What, e.Expected[0], e.Expected[1], e.Got[0], e.Got[1])
}
