package processor

import (
	"fmt"

	"github.com/nci/swathgrid/swath"
	"github.com/nci/swathgrid/utils"
)

// ConverterConfig is everything a Converter needs. There is no package
// level state; two converters with different configs may run side by side.
type ConverterConfig struct {
	Resample swath.ResampleOptions
	Writer   utils.RasterWriter
	CRS      string
}

// Georeference is the affine approximation of one swath and the regular
// grid it is resampled onto.
type Georeference struct {
	Source    *swath.GeolocationGrid
	Transform swath.AffineTransform
	Target    *swath.GeolocationGrid
	Residuals swath.ResidualStats
}

// ChannelResult describes one written raster.
type ChannelResult struct {
	Path         string
	Transform    swath.AffineTransform
	ValidPixels  int
	NoDataPixels int
	Raster       *utils.Float32Raster
}

type Converter struct {
	config ConverterConfig
}

func NewConverter(config ConverterConfig) (*Converter, error) {
	if config.Writer == nil {
		return nil, fmt.Errorf("converter needs a raster writer")
	}
	if !(config.Resample.MaxRadius > 0) {
		return nil, fmt.Errorf("max radius must be positive, got %v", config.Resample.MaxRadius)
	}
	if config.CRS == "" {
		config.CRS = utils.DefaultCRS
	}
	return &Converter{config: config}, nil
}

// Georeference fits the affine transform through the swath corners and
// evaluates it at pixel centres, which is where the written GeoTIFF
// places its samples.
func (c *Converter) Georeference(geo *swath.GeolocationGrid) (*Georeference, error) {
	corners, err := swath.CornerPoints(geo)
	if err != nil {
		return nil, err
	}
	t, err := swath.BuildTransform(corners)
	if err != nil {
		return nil, err
	}
	residuals, err := swath.Residuals(geo, t, swath.OffsetCorner)
	if err != nil {
		return nil, err
	}
	return &Georeference{
		Source:    geo,
		Transform: t,
		Target:    swath.TargetGrid(t, geo.Height, geo.Width, swath.OffsetCenter),
		Residuals: residuals,
	}, nil
}

// ConvertChannel georeferences geo and writes one channel of source to
// outPath.
func (c *Converter) ConvertChannel(geo *swath.GeolocationGrid, source swath.ChannelSource, channel, group int, outPath string) (*ChannelResult, error) {
	ref, err := c.Georeference(geo)
	if err != nil {
		return nil, err
	}
	return c.ConvertWith(ref, source, channel, group, outPath)
}

// ConvertWith is ConvertChannel for a swath that has already been
// georeferenced. Channels of one granule share a Georeference.
func (c *Converter) ConvertWith(ref *Georeference, source swath.ChannelSource, channel, group int, outPath string) (*ChannelResult, error) {
	height, width, _, _ := source.Shape()
	if height != ref.Source.Height || width != ref.Source.Width {
		return nil, &swath.ShapeMismatchError{What: "channel source", Expected: [2]int{ref.Source.Height, ref.Source.Width}, Got: [2]int{height, width}}
	}

	img, err := source.Channel(channel, group)
	if err != nil {
		return nil, err
	}
	out, err := swath.Resample(ref.Source, ref.Target, img, c.config.Resample)
	if err != nil {
		return nil, err
	}

	raster := utils.NewNaNRaster(out.Data, out.Height, out.Width)
	if err := c.config.Writer.WriteRaster(outPath, raster, ref.Transform, c.config.CRS); err != nil {
		return nil, err
	}

	valid, noData := out.Stats()
	return &ChannelResult{
		Path:         outPath,
		Transform:    ref.Transform,
		ValidPixels:  valid,
		NoDataPixels: noData,
		Raster:       raster,
	}, nil
}
