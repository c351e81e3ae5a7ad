package processor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/context"

	"github.com/nci/swathgrid/catalog"
	extr "github.com/nci/swathgrid/crawl/extractor"
	"github.com/nci/swathgrid/granule"
	"github.com/nci/swathgrid/metrics"
	"github.com/nci/swathgrid/swath"
	"github.com/nci/swathgrid/utils"
	pb "github.com/nci/swathgrid/worker/gdalservice"
)

// GranuleReader is an open swath granule.
type GranuleReader interface {
	Geolocation(latVar, lonVar string) (*swath.GeolocationGrid, error)
	ChannelSource(p *utils.Product) (swath.ChannelSource, error)
	Close()
}

// OpenFunc opens a granule for reading.
type OpenFunc func(path string) (GranuleReader, error)

// OpenGDALGranule reads granules through the GDAL multidimensional API.
func OpenGDALGranule(path string) (GranuleReader, error) {
	g, err := extr.OpenGranule(path)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GranuleProcessor converts every requested channel of a granule, lays
// the rasters out under the output directory and registers them in the
// catalog.
type GranuleProcessor struct {
	Config    *utils.Config
	Converter *Converter
	Catalog   catalog.Catalog
	Renderer  *utils.VRTRenderer
	Publisher utils.Publisher
	Logger    metrics.Logger
	Open      OpenFunc
}

// NewGranuleProcessor builds a processor writing GeoTIFFs through GDAL.
// The S3 publisher is attached when a bucket is configured.
func NewGranuleProcessor(config *utils.Config, cat catalog.Catalog, logger metrics.Logger) (*GranuleProcessor, error) {
	opts, err := config.Resample.Options()
	if err != nil {
		return nil, err
	}
	conv, err := NewConverter(ConverterConfig{Resample: opts, Writer: utils.NewGeoTIFFWriter(), CRS: utils.DefaultCRS})
	if err != nil {
		return nil, err
	}

	gp := &GranuleProcessor{
		Config:    config,
		Converter: conv,
		Catalog:   cat,
		Logger:    logger,
		Open:      OpenGDALGranule,
	}
	if config.Output.RGBComposite {
		gp.Renderer = utils.NewVRTRenderer(config.Output.TemplateDir)
	}
	if config.Output.S3.Bucket != "" {
		pub, err := utils.NewS3Publisher(config.Output.S3)
		if err != nil {
			return nil, err
		}
		gp.Publisher = pub
	}
	return gp, nil
}

// ChannelPath is <output_dir>/<granule stem>/<channel>-channel.tif.
func ChannelPath(outputDir string, md granule.Metadata, channel string) string {
	return filepath.Join(outputDir, md.Stem(), fmt.Sprintf("%s-channel.tif", channel))
}

type channelTask struct {
	out  *pb.ChannelOutput
	key  granule.Key
	info *metrics.ChannelInfo
}

// resolveChannels maps requested channel names onto the product table.
// Without a request the configured batch channels are used, then every
// channel of the product in name order.
func (gp *GranuleProcessor) resolveChannels(product *utils.Product, requested []string) []string {
	names := requested
	if len(names) == 0 {
		names = gp.Config.Batch.Channels
	}
	if len(names) == 0 {
		for name := range product.Channels {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	return names
}

// Process converts one granule. Granule level failures are reported in
// the result's Error field; channel failures in the channel's status.
func (gp *GranuleProcessor) Process(ctx context.Context, req *pb.ConvertRequest) *pb.ConvertResult {
	res := &pb.ConvertResult{JobID: req.JobID, Granule: req.Path, Error: pb.ResultOK}
	collector := metrics.NewMetricsCollector(gp.Logger)
	collector.Info.Granule = req.Path
	collector.Info.Worker = hostname()
	defer collector.Log()

	fail := func(err error) *pb.ConvertResult {
		res.Error = err.Error()
		collector.Fail(err)
		return res
	}

	md, err := granule.ParseFileName(req.Path)
	if err != nil {
		return fail(err)
	}
	product, err := gp.Config.ProductFor(req.Path)
	if err != nil {
		return fail(err)
	}
	res.Product = product.Name
	collector.Info.Product = product.Name

	schema := gp.Config.KeySchema()
	var pending []*channelTask
	for _, name := range gp.resolveChannels(product, req.Channels) {
		task := &channelTask{
			out:  &pb.ChannelOutput{Name: name, Group: product.Group, Path: ChannelPath(gp.Config.Output.Dir, md, name)},
			key:  md.Key(schema, name),
			info: &metrics.ChannelInfo{Channel: name, Group: product.Group},
		}
		res.Channels = append(res.Channels, task.out)

		index, ok := product.Channels[name]
		if !ok {
			gp.channelFailed(collector, task, fmt.Errorf("channel %s is not defined for product %s", name, product.Name))
			continue
		}
		task.out.Index, task.info.Index = index, index
		task.info.Output = task.out.Path

		skip, err := gp.alreadyConverted(ctx, task)
		if err != nil {
			gp.channelFailed(collector, task, err)
			continue
		}
		if skip {
			task.out.Status, task.info.Status = pb.StatusSkipped, metrics.StatusSkipped
			collector.AddChannel(task.info)
			continue
		}
		pending = append(pending, task)
	}

	if len(pending) == 0 {
		return res
	}
	if req.DryRun {
		for _, task := range pending {
			task.out.Status = pb.StatusPlanned
		}
		return res
	}

	reader, err := gp.Open(req.Path)
	if err != nil {
		return fail(err)
	}
	defer reader.Close()

	geo, err := reader.Geolocation(product.Latitude, product.Longitude)
	if err != nil {
		return fail(err)
	}
	source, err := reader.ChannelSource(product)
	if err != nil {
		return fail(err)
	}
	res.Height, res.Width = geo.Height, geo.Width
	collector.Info.Height, collector.Info.Width = geo.Height, geo.Width

	ref, err := gp.Converter.Georeference(geo)
	if err != nil {
		return fail(err)
	}

	entry := catalog.Entry{}
	fp, err := utils.NewFootprint(geo, extr.FootprintStep)
	if err != nil {
		log.Printf("%s: no footprint: %v", req.Path, err)
	} else {
		res.Bounds = fp.Bounds()
		res.Center = [2]float64{fp.Center[0], fp.Center[1]}
		entry.Bounds, entry.Center = res.Bounds, res.Center
		collector.Info.Bounds = res.Bounds[:]
		if wkt, err := fp.WKT(); err == nil {
			res.Footprint, entry.Footprint = wkt, wkt
		}
	}

	rasters := make(map[string]*utils.Float32Raster)
	converted := 0
	for _, task := range pending {
		if err := ctx.Err(); err != nil {
			gp.channelFailed(collector, task, err)
			continue
		}
		start := time.Now()
		cr, err := gp.Converter.ConvertWith(ref, source, task.out.Index, product.Group, task.out.Path)
		if err != nil {
			gp.channelFailed(collector, task, err)
			continue
		}
		task.info.Duration = time.Since(start)
		task.out.GeoTransform = cr.Transform
		task.out.Residuals = ref.Residuals
		task.out.ValidPixels, task.out.NoDataPixels = cr.ValidPixels, cr.NoDataPixels
		task.info.ValidPixels, task.info.NoDataPixels = cr.ValidPixels, cr.NoDataPixels
		task.info.MaxResidualLat, task.info.MaxResidualLon = ref.Residuals.MaxLat, ref.Residuals.MaxLon

		location, err := gp.publish(ctx, task.out.Path)
		if err != nil {
			removeOutput(task.out.Path)
			gp.channelFailed(collector, task, err)
			continue
		}
		if location != task.out.Path {
			task.out.URL = location
		}

		if schema == granule.SchemaChannel {
			e := entry
			e.Key, e.Path = task.key, location
			if err := gp.insert(ctx, &e); err != nil {
				removeOutput(task.out.Path)
				gp.channelFailed(collector, task, err)
				continue
			}
		}

		if gp.Config.Output.Quicklook.Enabled {
			task.out.Quicklook = gp.quicklook(task.out.Path, cr.Raster)
		}
		if isRGB(task.out.Name) {
			rasters[task.out.Name] = cr.Raster
		}

		task.out.Status, task.info.Status = pb.StatusConverted, metrics.StatusConverted
		collector.AddChannel(task.info)
		converted++
	}

	if converted > 0 && schema == granule.SchemaGranule {
		e := entry
		e.Key = md.Key(schema, "")
		e.Path = filepath.Join(gp.Config.Output.Dir, md.Stem())
		if err := gp.insert(ctx, &e); err != nil {
			for _, task := range pending {
				if task.out.Status == pb.StatusConverted {
					removeOutput(task.out.Path)
					if task.out.Quicklook != "" {
						removeOutput(task.out.Quicklook)
						task.out.Quicklook = ""
					}
					task.out.Status = pb.StatusFailed
					task.out.Error = err.Error()
				}
			}
			return fail(err)
		}
	}

	if len(rasters) == 3 {
		gp.composeRGB(ctx, res, md, ref.Transform, rasters)
	}
	return res
}

func (gp *GranuleProcessor) channelFailed(collector *metrics.MetricsCollector, task *channelTask, err error) {
	log.Printf("%s: %v", task.out.Path, err)
	task.out.Status, task.info.Status = pb.StatusFailed, metrics.StatusFailed
	task.out.Error, task.info.Error = err.Error(), err.Error()
	collector.AddChannel(task.info)
}

// removeOutput drops a raster that could not be published or catalogued,
// so that a rerun converts it again.
func removeOutput(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("%s: %v", path, err)
	}
}

// alreadyConverted checks the catalog. Without a catalog, and when
// configured, the output file on disk is checked instead.
func (gp *GranuleProcessor) alreadyConverted(ctx context.Context, task *channelTask) (bool, error) {
	if gp.Catalog != nil {
		found, err := gp.Catalog.Exists(ctx, task.key)
		if err != nil {
			return false, errors.Wrapf(err, "catalog lookup %s", task.key)
		}
		return found, nil
	}
	if gp.Config.Output.SkipExisting {
		if _, err := os.Stat(task.out.Path); err == nil {
			return true, nil
		}
	}
	return false, nil
}

func (gp *GranuleProcessor) insert(ctx context.Context, e *catalog.Entry) error {
	if gp.Catalog == nil {
		return nil
	}
	delay := time.Duration(gp.Config.Catalog.RetryDelayMs) * time.Millisecond
	err := Retry(ctx, gp.Config.Catalog.InsertRetries, delay, func() error {
		return gp.Catalog.Insert(ctx, e)
	})
	return errors.Wrapf(err, "catalog insert %s", e.Key)
}

// publish uploads a produced file and returns where the catalog should
// point. Without a publisher that is the local path.
func (gp *GranuleProcessor) publish(ctx context.Context, path string) (string, error) {
	if gp.Publisher == nil {
		return path, nil
	}
	rel, err := filepath.Rel(gp.Config.Output.Dir, path)
	if err != nil {
		return "", err
	}
	return gp.Publisher.Publish(ctx, path, rel)
}

func (gp *GranuleProcessor) quicklook(tifPath string, rasters ...*utils.Float32Raster) string {
	ql := gp.Config.Output.Quicklook
	path := tifPath[:len(tifPath)-len(filepath.Ext(tifPath))] + ".png"
	if err := utils.WriteQuicklook(path, rasters, ql.StretchMin, ql.StretchMax, ql.MaxSize); err != nil {
		log.Printf("%s: quicklook: %v", path, err)
		return ""
	}
	return path
}

func isRGB(channel string) bool {
	return channel == "red" || channel == "green" || channel == "blue"
}

// composeRGB writes rgb.vrt over the red, green and blue GeoTIFFs and, with
// quicklooks enabled, an RGB preview.
func (gp *GranuleProcessor) composeRGB(ctx context.Context, res *pb.ConvertResult, md granule.Metadata, t swath.AffineTransform, rasters map[string]*utils.Float32Raster) {
	dir := filepath.Join(gp.Config.Output.Dir, md.Stem())
	red := ChannelPath(gp.Config.Output.Dir, md, "red")

	if gp.Renderer != nil {
		r := rasters["red"]
		comp := utils.NewRGBComposite(r.Width, r.Height, t, utils.DefaultCRS,
			red, ChannelPath(gp.Config.Output.Dir, md, "green"), ChannelPath(gp.Config.Output.Dir, md, "blue"))
		path := filepath.Join(dir, "rgb.vrt")
		if err := gp.Renderer.WriteRGB(path, comp); err != nil {
			log.Printf("%s: %v", path, err)
		} else if location, err := gp.publish(ctx, path); err != nil {
			log.Printf("%s: %v", path, err)
		} else {
			res.RGB = location
		}
	}

	if gp.Config.Output.Quicklook.Enabled {
		res.Quicklook = gp.quicklook(filepath.Join(dir, "rgb.tif"), rasters["red"], rasters["green"], rasters["blue"])
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return h
}
