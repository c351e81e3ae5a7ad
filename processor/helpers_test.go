package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nci/swathgrid/swath"
	"github.com/nci/swathgrid/utils"
)

type writeRecord struct {
	raster *utils.Float32Raster
	geot   [6]float64
	crs    string
}

// memWriter keeps written rasters in memory and leaves a placeholder file
// so that the output layout can be inspected.
type memWriter struct {
	mu     sync.Mutex
	writes map[string]writeRecord
	fail   map[string]bool
}

func newMemWriter() *memWriter {
	return &memWriter{writes: make(map[string]writeRecord), fail: make(map[string]bool)}
}

func (w *memWriter) WriteRaster(path string, r *utils.Float32Raster, geot [6]float64, crs string) error {
	if err := r.Validate(); err != nil {
		return &utils.RasterWriteError{Path: path, Err: err}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail[filepath.Base(path)] {
		return &utils.RasterWriteError{Path: path, Err: fmt.Errorf("disk full")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("tif"), 0644); err != nil {
		return err
	}
	w.writes[path] = writeRecord{raster: r, geot: geot, crs: crs}
	return nil
}

func (w *memWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

// linearGrid is a north-up swath starting at (lat0, lon0) with step
// degrees between pixels.
func linearGrid(height, width int, lat0, lon0, step float64) *swath.GeolocationGrid {
	g := swath.NewGeolocationGrid(height, width)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			g.Lat[row*width+col] = lat0 - float64(row)*step
			g.Lon[row*width+col] = lon0 + float64(col)*step
		}
	}
	return g
}

// channelValue is the constant reflectance stored in every pixel of a
// channel of the test cube.
func channelValue(channel int) float32 {
	return 0.05 + float32(channel)*0.001
}

func constantCube(height, width, channels, groups int) *swath.Cube {
	c := swath.NewCube(height, width, channels, groups)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			for ch := 0; ch < channels; ch++ {
				for g := 0; g < groups; g++ {
					c.Set(row, col, ch, g, channelValue(ch))
				}
			}
		}
	}
	return c
}

type fakeReader struct {
	geo    *swath.GeolocationGrid
	source swath.ChannelSource
	closed bool
}

func (r *fakeReader) Geolocation(latVar, lonVar string) (*swath.GeolocationGrid, error) {
	return r.geo, nil
}

func (r *fakeReader) ChannelSource(p *utils.Product) (swath.ChannelSource, error) {
	return r.source, nil
}

func (r *fakeReader) Close() {
	r.closed = true
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	geo    *swath.GeolocationGrid
	source swath.ChannelSource
}

func (o *fakeOpener) Open(path string) (GranuleReader, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, path)
	return &fakeReader{geo: o.geo, source: o.source}, nil
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}
