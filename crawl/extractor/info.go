package extractor

import (
	"fmt"
	"os"

	"github.com/nci/swathgrid/granule"
	"github.com/nci/swathgrid/utils"
)

// FootprintStep is the edge pixel stride used when tracing footprints.
const FootprintStep = 16

// ExtractGranuleInfo opens a granule with the product layout matching its
// file name and summarises its dimensions and footprint.
func ExtractGranuleInfo(path string, config *utils.Config) (*GranuleInfo, error) {
	md, err := granule.ParseFileName(path)
	if err != nil {
		return nil, err
	}
	product, err := config.ProductFor(path)
	if err != nil {
		return nil, err
	}

	g, err := OpenGranule(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	info := &GranuleInfo{FileName: path, Product: product.Name, Metadata: md}

	for _, name := range []string{product.Latitude, product.Longitude} {
		shape, err := g.Shape(name)
		if err != nil {
			return nil, err
		}
		info.Variables = append(info.Variables, &VariableInfo{Name: name, Shape: shape})
	}
	for _, bg := range product.BandGroups {
		shape, err := g.Shape(bg.Variable)
		if err != nil {
			return nil, err
		}
		info.Variables = append(info.Variables, &VariableInfo{Name: bg.Variable, Shape: shape})
	}

	src, err := g.ChannelSource(product)
	if err != nil {
		return nil, err
	}
	info.Height, info.Width, info.Channels, info.Groups = src.Shape()

	geo, err := g.Geolocation(product.Latitude, product.Longitude)
	if err != nil {
		return nil, err
	}
	if geo.Height != info.Height || geo.Width != info.Width {
		return nil, fmt.Errorf("%s: geolocation is %dx%d but data is %dx%d", path, geo.Height, geo.Width, info.Height, info.Width)
	}

	fp, err := utils.NewFootprint(geo, FootprintStep)
	if err != nil {
		return nil, err
	}
	info.Polygon, err = fp.WKT()
	if err != nil {
		return nil, err
	}
	info.Bounds = fp.Bounds()
	info.Center = [2]float64{fp.Center[0], fp.Center[1]}

	if fStat, err := os.Stat(path); err == nil {
		info.Posix = GetPosixInfo(path, fStat)
	}
	return info, nil
}
