package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// EncodePNG renders one (grey) or three (RGB) byte rasters as a PNG.
// ByteNoData pixels are transparent. The image is downscaled so that
// neither side exceeds maxSize when maxSize is positive.
func EncodePNG(br []*ByteRaster, maxSize int) ([]byte, error) {
	if len(br) == 0 || br[0] == nil {
		return nil, fmt.Errorf("no raster to encode")
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, br[0].Width, br[0].Height))

	switch len(br) {
	case 1:
		r := br[0]
		for i, v := range r.Data {
			if v != ByteNoData {
				start := i * 4
				canvas.Pix[start] = v
				canvas.Pix[start+1] = v
				canvas.Pix[start+2] = v
				canvas.Pix[start+3] = 0xff
			}
		}

	case 3:
		rasterR := br[0]
		rasterG := br[1]
		rasterB := br[2]

		if rasterR == nil || rasterG == nil || rasterB == nil {
			return nil, fmt.Errorf("At least one of the bands is nil")
		}
		n := rasterR.Width * rasterR.Height
		if len(rasterG.Data) != n || len(rasterB.Data) != n {
			return nil, fmt.Errorf("Mixed raster sizes")
		}

		for i := 0; i < n; i++ {
			if rasterR.Data[i] != ByteNoData || rasterG.Data[i] != ByteNoData || rasterB.Data[i] != ByteNoData {
				start := i * 4
				canvas.Pix[start] = rasterR.Data[i]
				canvas.Pix[start+1] = rasterG.Data[i]
				canvas.Pix[start+2] = rasterB.Data[i]
				canvas.Pix[start+3] = 0xff
			}
		}

	default:
		return nil, fmt.Errorf("Cannot encode other than 1 or 3 bands into a PNG: Received %d", len(br))
	}

	var img image.Image = canvas
	if w, h := fitSize(br[0].Width, br[0].Height, maxSize); w != br[0].Width || h != br[0].Height {
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
		img = dst
	}

	buf := new(bytes.Buffer)
	err := png.Encode(buf, img)
	return buf.Bytes(), err
}

func fitSize(width, height, maxSize int) (int, int) {
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return width, height
	}
	if width >= height {
		h := height * maxSize / width
		if h < 1 {
			h = 1
		}
		return maxSize, h
	}
	w := width * maxSize / height
	if w < 1 {
		w = 1
	}
	return w, maxSize
}

// WriteQuicklook stretches rasters to [min, max] and writes them as a PNG.
func WriteQuicklook(path string, rasters []*Float32Raster, min, max float64, maxSize int) error {
	sp, err := StretchParams(min, max)
	if err != nil {
		return err
	}
	br := make([]*ByteRaster, len(rasters))
	for i, r := range rasters {
		br[i] = Scale(r, sp)
	}
	out, err := EncodePNG(br, maxSize)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, out, 0644)
}
