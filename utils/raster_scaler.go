package utils

import (
	"fmt"
	"math"
)

// ByteNoData marks no data pixels in scaled rasters.
const ByteNoData = 0xFF

type ScaleParams struct {
	Offset float64
	Scale  float64
	Clip   float64
}

// StretchParams maps [min, max] onto [0, 254].
func StretchParams(min, max float64) (ScaleParams, error) {
	if !(max > min) {
		return ScaleParams{}, fmt.Errorf("invalid stretch range [%v, %v]", min, max)
	}
	return ScaleParams{Offset: -min, Scale: 254 / (max - min), Clip: max - min}, nil
}

// Scale converts a Float32 raster to bytes: value+Offset is clipped to
// [0, Clip] and multiplied by Scale. No data and NaN become ByteNoData.
func Scale(r *Float32Raster, params ScaleParams) *ByteRaster {
	out := &ByteRaster{NoData: ByteNoData, Data: make([]uint8, r.Height*r.Width), Width: r.Width, Height: r.Height}

	noData := float32(r.NoData)
	scale := float32(params.Scale)
	offset := float32(params.Offset)
	clip := float32(params.Clip)

	for i, value := range r.Data {
		if value == noData || math.IsNaN(float64(value)) {
			out.Data[i] = ByteNoData
			continue
		}
		value += offset
		if value < 0 {
			value = 0
		}
		if value > clip {
			value = clip
		}
		b := value * scale
		if b > 254 {
			b = 254
		}
		out.Data[i] = uint8(b)
	}
	return out
}
