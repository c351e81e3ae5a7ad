package utils

// #include "gdal.h"
// #include "gdal_frmts.h"
// #cgo pkg-config: gdal
import "C"

import (
	"os"
	"sync"
)

var gdalOnce sync.Once

// InitGdal sets the GDAL environment for swath conversion and registers
// drivers. It is safe to call more than once.
func InitGdal() {
	gdalOnce.Do(func() {
		setDefaultEnv("GDAL_NETCDF_VERIFY_DIMS", "NO")
		setDefaultEnv("GDAL_PAM_ENABLED", "NO")
		setDefaultEnv("GDAL_DISABLE_READDIR_ON_OPEN", "EMPTY_DIR")
		setDefaultEnv("GDAL_MAX_DATASET_POOL_SIZE", "10")
		setDefaultEnv("CPL_LOG_ERRORS", "ON")

		registerGDALDrivers()
	})
}

func setDefaultEnv(envVar string, defaultVal string) {
	if _, ok := os.LookupEnv(envVar); !ok {
		os.Setenv(envVar, defaultVal)
	}
}

func registerGDALDrivers() {
	// Find out which of the drivers we read and write are present,
	// deregister everything and put those at the front of the driver
	// list since drivers are interrogated in a linear scan.
	var haveNetCDF, haveHDF5, haveGTiff, haveVRT bool

	C.GDALAllRegister()
	for i := 0; i < int(C.GDALGetDriverCount()); i++ {
		driver := C.GDALGetDriver(C.int(i))
		switch C.GoString(C.GDALGetDriverShortName(driver)) {
		case "netCDF":
			haveNetCDF = true
		case "HDF5":
			haveHDF5 = true
		case "GTiff":
			haveGTiff = true
		case "VRT":
			haveVRT = true
		}
	}

	for C.GDALGetDriverCount() > 0 {
		C.GDALDeregisterDriver(C.GDALGetDriver(0))
	}

	if haveNetCDF {
		C.GDALRegister_netCDF()
	}
	if haveHDF5 {
		C.GDALRegister_HDF5()
	}
	if haveGTiff {
		C.GDALRegister_GTiff()
	}
	if haveVRT {
		C.GDALRegister_VRT()
	}
	C.GDALAllRegister()
}
