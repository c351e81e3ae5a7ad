package extractor

// #include <stdlib.h>
// #include "gdal.h"
// #include "cpl_error.h"
// #cgo pkg-config: gdal
//
// static int read_slab(GDALMDArrayH hArray, const GUInt64 *start, const size_t *count, GDALDataType eType, void *buf)
// {
//	GDALExtendedDataTypeH hDT = GDALExtendedDataTypeCreate(eType);
//	int ok = GDALMDArrayRead(hArray, start, count, NULL, NULL, hDT, buf, NULL, 0);
//	GDALExtendedDataTypeRelease(hDT);
//	return ok;
// }
import "C"

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/nci/swathgrid/swath"
	"github.com/nci/swathgrid/utils"
)

// Granule is an open multidimensional (netCDF-4/HDF5) swath file. Reads
// are serialised; a Granule should not be shared across conversions.
type Granule struct {
	Path string

	mu       sync.Mutex
	hDataset C.GDALDatasetH
	hRoot    C.GDALGroupH
}

// OpenGranule opens path with the GDAL multidimensional API.
func OpenGranule(path string) (*Granule, error) {
	utils.InitGdal()

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	flags := C.uint(C.GDAL_OF_MULTIDIM_RASTER | C.GDAL_OF_READONLY | C.GDAL_OF_VERBOSE_ERROR)
	hDataset := C.GDALOpenEx(cPath, flags, nil, nil, nil)
	if hDataset == nil {
		return nil, fmt.Errorf("GDAL could not open %s: %s", path, C.GoString(C.CPLGetLastErrorMsg()))
	}
	hRoot := C.GDALDatasetGetRootGroup(hDataset)
	if hRoot == nil {
		C.GDALClose(hDataset)
		return nil, fmt.Errorf("%s has no root group", path)
	}
	return &Granule{Path: path, hDataset: hDataset, hRoot: hRoot}, nil
}

func (g *Granule) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hRoot != nil {
		C.GDALGroupRelease(g.hRoot)
		g.hRoot = nil
	}
	if g.hDataset != nil {
		C.GDALClose(g.hDataset)
		g.hDataset = nil
	}
}

type mdArray struct {
	h      C.GDALMDArrayH
	shape  []int
	noData float64
	hasND  bool
	scale  float64
	offset float64
}

func (g *Granule) openArray(variable string) (*mdArray, error) {
	if g.hRoot == nil {
		return nil, fmt.Errorf("granule %s is closed", g.Path)
	}
	cName := C.CString(variable)
	defer C.free(unsafe.Pointer(cName))
	hArray := C.GDALGroupOpenMDArrayFromFullname(g.hRoot, cName, nil)
	if hArray == nil {
		return nil, fmt.Errorf("variable %s not found in %s", variable, g.Path)
	}

	var nDims C.size_t
	hDims := C.GDALMDArrayGetDimensions(hArray, &nDims)
	shape := make([]int, int(nDims))
	if nDims > 0 {
		dims := unsafe.Slice(hDims, int(nDims))
		for i, d := range dims {
			shape[i] = int(C.GDALDimensionGetSize(d))
		}
	}
	C.GDALReleaseDimensions(hDims, nDims)

	arr := &mdArray{h: hArray, shape: shape, scale: 1}
	var has C.int
	nd := C.GDALMDArrayGetNoDataValueAsDouble(hArray, &has)
	arr.noData, arr.hasND = float64(nd), has != 0
	if s := C.GDALMDArrayGetScale(hArray, &has); has != 0 {
		arr.scale = float64(s)
	}
	if o := C.GDALMDArrayGetOffset(hArray, &has); has != 0 {
		arr.offset = float64(o)
	}
	return arr, nil
}

func (a *mdArray) release() {
	C.GDALMDArrayRelease(a.h)
}

// unpack maps fill values to NaN and applies scale and offset.
func (a *mdArray) unpack(v float64) float64 {
	if a.hasND && (v == a.noData || (math.IsNaN(a.noData) && math.IsNaN(v))) {
		return math.NaN()
	}
	return v*a.scale + a.offset
}

func (a *mdArray) slab(start, count []int) ([]C.GUInt64, []C.size_t, int, error) {
	if start == nil {
		start = make([]int, len(a.shape))
	}
	if count == nil {
		count = a.shape
	}
	if len(start) != len(a.shape) || len(count) != len(a.shape) {
		return nil, nil, 0, fmt.Errorf("slab rank %d does not match variable rank %d", len(start), len(a.shape))
	}
	cStart := make([]C.GUInt64, len(a.shape))
	cCount := make([]C.size_t, len(a.shape))
	n := 1
	for i := range a.shape {
		if start[i] < 0 || count[i] < 1 || start[i]+count[i] > a.shape[i] {
			return nil, nil, 0, fmt.Errorf("slab [%d:%d] out of range for axis %d of size %d", start[i], start[i]+count[i], i, a.shape[i])
		}
		cStart[i] = C.GUInt64(start[i])
		cCount[i] = C.size_t(count[i])
		n *= count[i]
	}
	return cStart, cCount, n, nil
}

// Shape returns the dimension sizes of a variable.
func (g *Granule) Shape(variable string) ([]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	arr, err := g.openArray(variable)
	if err != nil {
		return nil, err
	}
	defer arr.release()
	return arr.shape, nil
}

// ReadFloat64 reads a hyperslab of variable; nil start and count read
// everything. Fill values come back as NaN.
func (g *Granule) ReadFloat64(variable string, start, count []int) ([]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	arr, err := g.openArray(variable)
	if err != nil {
		return nil, err
	}
	defer arr.release()

	cStart, cCount, n, err := arr.slab(start, count)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", variable, err)
	}
	buf := make([]float64, n)
	if n == 0 {
		return buf, nil
	}
	if C.read_slab(arr.h, &cStart[0], &cCount[0], C.GDT_Float64, unsafe.Pointer(&buf[0])) == 0 {
		return nil, fmt.Errorf("error reading %s: %s", variable, C.GoString(C.CPLGetLastErrorMsg()))
	}
	for i, v := range buf {
		buf[i] = arr.unpack(v)
	}
	return buf, nil
}

// ReadFloat32 is ReadFloat64 for float32 samples.
func (g *Granule) ReadFloat32(variable string, start, count []int) ([]float32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	arr, err := g.openArray(variable)
	if err != nil {
		return nil, err
	}
	defer arr.release()

	cStart, cCount, n, err := arr.slab(start, count)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", variable, err)
	}
	buf := make([]float32, n)
	if n == 0 {
		return buf, nil
	}
	if C.read_slab(arr.h, &cStart[0], &cCount[0], C.GDT_Float32, unsafe.Pointer(&buf[0])) == 0 {
		return nil, fmt.Errorf("error reading %s: %s", variable, C.GoString(C.CPLGetLastErrorMsg()))
	}
	for i, v := range buf {
		buf[i] = float32(arr.unpack(float64(v)))
	}
	return buf, nil
}

// Geolocation reads two 2-D latitude and longitude variables.
func (g *Granule) Geolocation(latVar, lonVar string) (*swath.GeolocationGrid, error) {
	latShape, err := g.Shape(latVar)
	if err != nil {
		return nil, err
	}
	lonShape, err := g.Shape(lonVar)
	if err != nil {
		return nil, err
	}
	if len(latShape) != 2 || len(lonShape) != 2 {
		return nil, fmt.Errorf("geolocation variables must be 2-D, got %v and %v", latShape, lonShape)
	}
	if latShape[0] != lonShape[0] || latShape[1] != lonShape[1] {
		return nil, &swath.ShapeMismatchError{What: lonVar, Expected: [2]int{latShape[0], latShape[1]}, Got: [2]int{lonShape[0], lonShape[1]}}
	}

	lat, err := g.ReadFloat64(latVar, nil, nil)
	if err != nil {
		return nil, err
	}
	lon, err := g.ReadFloat64(lonVar, nil, nil)
	if err != nil {
		return nil, err
	}
	grid := &swath.GeolocationGrid{Height: latShape[0], Width: latShape[1], Lat: lat, Lon: lon}
	return grid, grid.Validate()
}

// VariableSource reads channel slices of one band group on demand.
type VariableSource struct {
	g     *Granule
	group utils.BandGroup
	shape []int
}

// BandGroup opens a band group as a swath.ChannelSource.
func (g *Granule) BandGroup(bg utils.BandGroup) (*VariableSource, error) {
	shape, err := g.Shape(bg.Variable)
	if err != nil {
		return nil, err
	}
	for _, axis := range []int{bg.RowAxis, bg.ColAxis, bg.ChannelAxis} {
		if axis < 0 || axis >= len(shape) {
			return nil, fmt.Errorf("%s: axis %d out of range for rank %d", bg.Variable, axis, len(shape))
		}
	}
	if bg.GroupAxis >= len(shape) {
		return nil, fmt.Errorf("%s: group axis %d out of range for rank %d", bg.Variable, bg.GroupAxis, len(shape))
	}
	return &VariableSource{g: g, group: bg, shape: shape}, nil
}

func (v *VariableSource) Shape() (int, int, int, int) {
	groups := 1
	if v.group.GroupAxis >= 0 {
		groups = v.shape[v.group.GroupAxis]
	}
	return v.shape[v.group.RowAxis], v.shape[v.group.ColAxis], v.shape[v.group.ChannelAxis], groups
}

func (v *VariableSource) Channel(channel, group int) (*swath.Image, error) {
	height, width, channels, groups := v.Shape()
	if channel < 0 || channel >= channels {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", channel, channels)
	}
	if group < 0 || group >= groups {
		return nil, fmt.Errorf("band group %d out of range [0, %d)", group, groups)
	}

	bg := v.group
	start := make([]int, len(v.shape))
	count := make([]int, len(v.shape))
	for i := range count {
		count[i] = 1
	}
	for axis, idx := range bg.FixedAxes {
		if axis >= 0 && axis < len(start) {
			start[axis] = idx
		}
	}
	start[bg.ChannelAxis] = channel
	if bg.GroupAxis >= 0 {
		start[bg.GroupAxis] = group
	}
	start[bg.RowAxis], count[bg.RowAxis] = 0, height
	start[bg.ColAxis], count[bg.ColAxis] = 0, width

	data, err := v.g.ReadFloat32(bg.Variable, start, count)
	if err != nil {
		return nil, err
	}
	img := &swath.Image{Height: height, Width: width, Data: data}
	if bg.RowAxis > bg.ColAxis {
		img.Data = transpose(data, width, height)
	}
	return img, nil
}

// transpose turns a rows x cols row-major array into cols x rows.
func transpose(data []float32, rows, cols int) []float32 {
	out := make([]float32, len(data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = data[r*cols+c]
		}
	}
	return out
}

// ChannelSource opens every band group of the product and stitches them
// along the channel axis.
func (g *Granule) ChannelSource(p *utils.Product) (swath.ChannelSource, error) {
	sources := make([]swath.ChannelSource, 0, len(p.BandGroups))
	for _, bg := range p.BandGroups {
		src, err := g.BandGroup(bg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return swath.Concat(sources...)
}
