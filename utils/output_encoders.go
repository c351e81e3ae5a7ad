package utils

// #include <stdlib.h>
// #include "gdal.h"
// #include "cpl_error.h"
// #include "cpl_string.h"
// #include "ogr_srs_api.h"
// #cgo pkg-config: gdal
import "C"

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/google/uuid"
)

// DefaultCRS is the coordinate reference system of converted rasters.
const DefaultCRS = "EPSG:4326"

type ByteRaster struct {
	Data          []uint8
	Height, Width int
	NoData        float64
}

type Float32Raster struct {
	Data          []float32
	Height, Width int
	NoData        float64
}

// Validate checks the data length against the raster shape.
func (r *Float32Raster) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid raster size %dx%d", r.Width, r.Height)
	}
	if len(r.Data) != r.Width*r.Height {
		return fmt.Errorf("raster data length %d does not match %dx%d", len(r.Data), r.Width, r.Height)
	}
	return nil
}

// RasterWriteError reports a failed raster write. No file is left at Path.
type RasterWriteError struct {
	Path string
	Err  error
}

func (e *RasterWriteError) Error() string {
	return fmt.Sprintf("failed to write raster %s: %v", e.Path, e.Err)
}

func (e *RasterWriteError) Unwrap() error {
	return e.Err
}

// RasterWriter persists a single band georeferenced raster. geot follows
// the GDAL geotransform convention.
type RasterWriter interface {
	WriteRaster(path string, r *Float32Raster, geot [6]float64, crs string) error
}

// GeoTIFFWriter writes Float32 GeoTIFFs through GDAL. Files are written
// under a temporary name and renamed into place once closed.
type GeoTIFFWriter struct {
	CreateOptions []string
}

func NewGeoTIFFWriter() *GeoTIFFWriter {
	return &GeoTIFFWriter{CreateOptions: []string{"COMPRESS=DEFLATE", "PREDICTOR=3", "TILED=YES"}}
}

func (w *GeoTIFFWriter) WriteRaster(path string, r *Float32Raster, geot [6]float64, crs string) error {
	if err := r.Validate(); err != nil {
		return &RasterWriteError{Path: path, Err: err}
	}
	if crs == "" {
		crs = DefaultCRS
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &RasterWriteError{Path: path, Err: err}
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tif", uuid.New().String()))

	InitGdal()
	if err := writeGTiff(tmp, r, geot, crs, w.CreateOptions); err != nil {
		os.Remove(tmp)
		return &RasterWriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &RasterWriteError{Path: path, Err: err}
	}
	return nil
}

func writeGTiff(path string, r *Float32Raster, geot [6]float64, crs string, createOptions []string) (err error) {
	driverName := C.CString("GTiff")
	defer C.free(unsafe.Pointer(driverName))
	hDriver := C.GDALGetDriverByName(driverName)
	if hDriver == nil {
		return fmt.Errorf("GTiff driver is not available")
	}

	var opts **C.char
	for _, o := range createOptions {
		co := C.CString(o)
		opts = C.CSLAddString(opts, co)
		C.free(unsafe.Pointer(co))
	}
	defer C.CSLDestroy(opts)

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	C.CPLErrorReset()
	hDstDS := C.GDALCreate(hDriver, cPath, C.int(r.Width), C.int(r.Height), 1, C.GDT_Float32, opts)
	if hDstDS == nil {
		return fmt.Errorf("Error creating raster: %s", C.GoString(C.CPLGetLastErrorMsg()))
	}
	defer func() {
		C.GDALClose(hDstDS)
		if err == nil && C.CPLGetLastErrorType() >= C.CE_Failure {
			err = fmt.Errorf("Error closing raster: %s", C.GoString(C.CPLGetLastErrorMsg()))
		}
	}()

	hSRS := C.OSRNewSpatialReference(nil)
	defer C.OSRDestroySpatialReference(hSRS)
	cCRS := C.CString(crs)
	defer C.free(unsafe.Pointer(cCRS))
	if C.OSRSetFromUserInput(hSRS, cCRS) != C.OGRERR_NONE {
		return fmt.Errorf("Unsupported CRS: %s", crs)
	}
	var projWKT *C.char
	C.OSRExportToWkt(hSRS, &projWKT)
	defer C.CPLFree(unsafe.Pointer(projWKT))
	if C.GDALSetProjection(hDstDS, projWKT) != C.CE_None {
		return fmt.Errorf("Error setting projection %s", crs)
	}

	if C.GDALSetGeoTransform(hDstDS, (*C.double)(unsafe.Pointer(&geot[0]))) != C.CE_None {
		return fmt.Errorf("Error setting geotransform %v", geot)
	}

	hBand := C.GDALGetRasterBand(hDstDS, 1)
	C.GDALSetRasterNoDataValue(hBand, C.double(r.NoData))
	gerr := C.GDALRasterIO(hBand, C.GF_Write, 0, 0, C.int(r.Width), C.int(r.Height), unsafe.Pointer(&r.Data[0]), C.int(r.Width), C.int(r.Height), C.GDT_Float32, 0, 0)
	if gerr != C.CE_None {
		return fmt.Errorf("Error writing raster band: %s", C.GoString(C.CPLGetLastErrorMsg()))
	}
	return nil
}

// GeoTIFFInfo is a single band raster read back from disk.
type GeoTIFFInfo struct {
	Raster       *Float32Raster
	GeoTransform [6]float64
	Projection   string
	// EPSG is the authority code of the projection, empty when it has none.
	EPSG      string
	HasNoData bool
}

// ReadGeoTIFF reads the first band of path as Float32 together with its
// georeferencing.
func ReadGeoTIFF(path string) (*GeoTIFFInfo, error) {
	InitGdal()
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	C.CPLErrorReset()
	hDS := C.GDALOpen(cPath, C.GA_ReadOnly)
	if hDS == nil {
		return nil, fmt.Errorf("Error opening %s: %s", path, C.GoString(C.CPLGetLastErrorMsg()))
	}
	defer C.GDALClose(hDS)

	info := &GeoTIFFInfo{}
	if C.GDALGetGeoTransform(hDS, (*C.double)(unsafe.Pointer(&info.GeoTransform[0]))) != C.CE_None {
		return nil, fmt.Errorf("%s has no geotransform", path)
	}
	info.Projection = C.GoString(C.GDALGetProjectionRef(hDS))
	if info.Projection != "" {
		hSRS := C.OSRNewSpatialReference(nil)
		defer C.OSRDestroySpatialReference(hSRS)
		cWKT := C.CString(info.Projection)
		defer C.free(unsafe.Pointer(cWKT))
		if C.OSRSetFromUserInput(hSRS, cWKT) == C.OGRERR_NONE {
			if code := C.OSRGetAuthorityCode(hSRS, nil); code != nil {
				info.EPSG = C.GoString(code)
			}
		}
	}

	if C.GDALGetRasterCount(hDS) < 1 {
		return nil, fmt.Errorf("%s has no bands", path)
	}
	hBand := C.GDALGetRasterBand(hDS, 1)
	width, height := int(C.GDALGetRasterXSize(hDS)), int(C.GDALGetRasterYSize(hDS))
	r := &Float32Raster{Data: make([]float32, width*height), Width: width, Height: height}
	var hasNoData C.int
	r.NoData = float64(C.GDALGetRasterNoDataValue(hBand, &hasNoData))
	info.HasNoData = hasNoData != 0
	gerr := C.GDALRasterIO(hBand, C.GF_Read, 0, 0, C.int(width), C.int(height), unsafe.Pointer(&r.Data[0]), C.int(width), C.int(height), C.GDT_Float32, 0, 0)
	if gerr != C.CE_None {
		return nil, fmt.Errorf("Error reading %s: %s", path, C.GoString(C.CPLGetLastErrorMsg()))
	}
	info.Raster = r
	return info, nil
}

// NewNaNRaster wraps data as a Float32 raster whose no data value is NaN.
func NewNaNRaster(data []float32, height, width int) *Float32Raster {
	return &Float32Raster{Data: data, Height: height, Width: width, NoData: math.NaN()}
}
