package swath

import (
	"fmt"
	"math"
	"strings"
)

// Method selects how neighbours are combined into a target value.
type Method int

const (
	Nearest Method = iota
	Gaussian
)

// DefaultEpsilon is the value below which a resampled measurement is
// treated as invalid.
const DefaultEpsilon = 1e-5

func (m Method) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Gaussian:
		return "gaussian"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod accepts "nearest" and "gaussian" (or "gauss").
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest", "nn":
		return Nearest, nil
	case "gaussian", "gauss":
		return Gaussian, nil
	}
	return Nearest, fmt.Errorf("unknown resampling method %q", s)
}

// ResampleOptions configures Resample. MaxRadius is in metres. Results
// below Epsilon become no data.
type ResampleOptions struct {
	Method    Method
	MaxRadius float64
	Epsilon   float64
}

// GaussianWeight is exp(-d²/σ²).
func GaussianWeight(distance, sigma float64) float64 {
	return math.Exp(-(distance * distance) / (sigma * sigma))
}

// Resample projects data, sampled on src, onto dst. The returned image has
// the shape of dst. Cells with no source sample within MaxRadius, or whose
// value is not a finite measurement of at least Epsilon, are NaN.
func Resample(src, dst *GeolocationGrid, data *Image, opts ResampleOptions) (*Image, error) {
	if len(data.Data) == 0 || len(src.Lat) == 0 || src.Height*src.Width == 0 {
		return nil, &EmptySourceError{}
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if data.Height != src.Height || data.Width != src.Width {
		return nil, &ShapeMismatchError{What: "source data", Expected: [2]int{src.Height, src.Width}, Got: [2]int{data.Height, data.Width}}
	}
	if err := dst.Validate(); err != nil {
		return nil, err
	}
	if !(opts.MaxRadius > 0) {
		return nil, fmt.Errorf("max radius must be positive, got %v", opts.MaxRadius)
	}

	idx := NewSpatialIndex(src, func(i int) bool {
		return isFinite(float64(data.Data[i]))
	})

	sigma := opts.MaxRadius / 3
	out := NewImage(dst.Height, dst.Width)
	for i := range out.Data {
		neighbors := idx.Within(dst.Lat[i], dst.Lon[i], opts.MaxRadius)
		if len(neighbors) == 0 {
			continue
		}

		var v float64
		switch opts.Method {
		case Nearest:
			best := neighbors[0]
			for _, n := range neighbors[1:] {
				if n.Distance < best.Distance {
					best = n
				}
			}
			v = float64(data.Data[best.Index])
		case Gaussian:
			var sum, wsum float64
			for _, n := range neighbors {
				w := GaussianWeight(n.Distance, sigma)
				sum += w * float64(data.Data[n.Index])
				wsum += w
			}
			v = sum / wsum
		default:
			return nil, fmt.Errorf("unsupported resampling method %v", opts.Method)
		}

		if !isFinite(v) || v < opts.Epsilon {
			continue
		}
		out.Data[i] = float32(v)
	}
	return out, nil
}
