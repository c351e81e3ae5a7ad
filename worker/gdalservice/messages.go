// Package gdalservice defines the conversion task protocol spoken between
// the batch converter, the gRPC front end and gdal-process workers.
// Messages travel as google.protobuf.Struct documents whose fields mirror
// the JSON encoding of the Go types below.
package gdalservice

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nci/swathgrid/metrics"
	"github.com/nci/swathgrid/swath"
)

// ResultOK is the Error value of a successful result.
const ResultOK = "OK"

// Channel statuses.
const (
	StatusConverted = "converted"
	StatusSkipped   = "skipped"
	StatusPlanned   = "planned"
	StatusFailed    = "failed"
)

// ConvertRequest asks for the conversion of one granule. Channels
// defaults to the configured batch channels, then to every channel of
// the product. A worker abandons the conversion at Deadline.
type ConvertRequest struct {
	Path     string     `json:"path"`
	Channels []string   `json:"channels,omitempty"`
	DryRun   bool       `json:"dry_run,omitempty"`
	JobID    string     `json:"job_id,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type ChannelOutput struct {
	Name         string              `json:"name"`
	Index        int                 `json:"index"`
	Group        int                 `json:"group"`
	Path         string              `json:"path"`
	URL          string              `json:"url,omitempty"`
	Quicklook    string              `json:"quicklook,omitempty"`
	Status       string              `json:"status"`
	ValidPixels  int                 `json:"valid_pixels"`
	NoDataPixels int                 `json:"nodata_pixels"`
	GeoTransform [6]float64          `json:"geotransform"`
	Residuals    swath.ResidualStats `json:"residuals"`
	Error        string              `json:"error,omitempty"`
}

type ConvertResult struct {
	JobID     string           `json:"job_id,omitempty"`
	Granule   string           `json:"granule"`
	Product   string           `json:"product,omitempty"`
	Height    int              `json:"height,omitempty"`
	Width     int              `json:"width,omitempty"`
	Footprint string           `json:"footprint,omitempty"`
	Bounds    [4]float64       `json:"bounds"`
	Center    [2]float64       `json:"center"`
	Channels  []*ChannelOutput `json:"channels"`
	RGB       string           `json:"rgb,omitempty"`
	Quicklook string           `json:"quicklook,omitempty"`
	Error     string           `json:"error"`
}

// Failed reports whether the granule or any of its channels failed.
func (r *ConvertResult) Failed() bool {
	if r.Error != ResultOK {
		return true
	}
	for _, c := range r.Channels {
		if c.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Err returns the granule level error, if any.
func (r *ConvertResult) Err() error {
	if r.Error == ResultOK {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Granule, r.Error)
}

// ConversionInfo is the metrics record of a result received from a worker.
func (r *ConvertResult) ConversionInfo() *metrics.ConversionInfo {
	info := &metrics.ConversionInfo{
		Granule: r.Granule,
		Product: r.Product,
		Height:  r.Height,
		Width:   r.Width,
	}
	if r.Error != ResultOK {
		info.Status, info.Error = metrics.StatusFailed, r.Error
	}
	for _, c := range r.Channels {
		info.Channels = append(info.Channels, &metrics.ChannelInfo{
			Channel:        c.Name,
			Index:          c.Index,
			Group:          c.Group,
			Output:         c.Path,
			ValidPixels:    c.ValidPixels,
			NoDataPixels:   c.NoDataPixels,
			MaxResidualLat: c.Residuals.MaxLat,
			MaxResidualLon: c.Residuals.MaxLon,
			Status:         c.Status,
			Error:          c.Error,
		})
	}
	return info
}

// EncodeMessage converts a JSON serialisable value into a Struct.
func EncodeMessage(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %v", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("encode message: %v", err)
	}
	return s, nil
}

// DecodeMessage fills v from a Struct produced by EncodeMessage.
func DecodeMessage(s *structpb.Struct, v interface{}) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode message: %v", err)
	}
	return nil
}
