package metrics

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusConverted = "converted"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

var (
	channelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swathgrid_channels_total",
		Help: "Number of channel conversions by outcome.",
	}, []string{"product", "status"})
	granulesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swathgrid_granules_total",
		Help: "Number of granules processed by outcome.",
	}, []string{"product", "status"})
	channelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swathgrid_channel_duration_seconds",
		Help:    "Duration of resampling and writing one channel.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"product"})
	noDataPixels = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swathgrid_nodata_pixels_total",
		Help: "Number of target pixels left without data.",
	}, []string{"product"})
)

type ChannelInfo struct {
	Channel        string        `json:"channel"`
	Index          int           `json:"index"`
	Group          int           `json:"group"`
	Output         string        `json:"output,omitempty"`
	Duration       time.Duration `json:"duration"`
	ValidPixels    int           `json:"valid_pixels"`
	NoDataPixels   int           `json:"nodata_pixels"`
	MaxResidualLat float64       `json:"max_residual_lat"`
	MaxResidualLon float64       `json:"max_residual_lon"`
	Status         string        `json:"status"`
	Error          string        `json:"error,omitempty"`
}

type ConversionInfo struct {
	ReqTime  string         `json:"req_time"`
	Duration time.Duration  `json:"duration"`
	Granule  string         `json:"granule"`
	Product  string         `json:"product"`
	Worker   string         `json:"worker"`
	Height   int            `json:"height"`
	Width    int            `json:"width"`
	Bounds   []float64      `json:"bounds,omitempty"`
	Channels []*ChannelInfo `json:"channels"`
	Status   string         `json:"status"`
	Error    string         `json:"error,omitempty"`
}

// MetricsCollector accumulates the metrics of one granule conversion and
// hands them to a Logger once it is done.
type MetricsCollector struct {
	Info   *ConversionInfo
	logger Logger
	start  time.Time
	mu     sync.Mutex
}

func NewMetricsCollector(logger Logger) *MetricsCollector {
	now := time.Now()
	return &MetricsCollector{
		Info:   &ConversionInfo{ReqTime: now.UTC().Format(time.RFC3339)},
		logger: logger,
		start:  now,
	}
}

// AddChannel records the outcome of one channel.
func (m *MetricsCollector) AddChannel(ci *ChannelInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Info.Channels = append(m.Info.Channels, ci)

	countChannel(m.Info.Product, ci)
	if ci.Status == StatusConverted {
		channelDuration.WithLabelValues(m.Info.Product).Observe(ci.Duration.Seconds())
	}
}

func countChannel(product string, ci *ChannelInfo) {
	channelsTotal.WithLabelValues(product, ci.Status).Inc()
	if ci.Status == StatusConverted {
		noDataPixels.WithLabelValues(product).Add(float64(ci.NoDataPixels))
	}
}

// Fail marks the whole granule as failed.
func (m *MetricsCollector) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Info.Status = StatusFailed
	m.Info.Error = err.Error()
}

// Log finalises the granule status and duration and logs the record.
func (m *MetricsCollector) Log() {
	m.mu.Lock()
	m.Info.Duration = time.Since(m.start)
	m.Info.finaliseStatus()
	granulesTotal.WithLabelValues(m.Info.Product, m.Info.Status).Inc()
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

// Record counts a conversion that ran in another process, such as a
// gdal-process worker. Channel durations are not observed.
func Record(info *ConversionInfo) {
	for _, ci := range info.Channels {
		countChannel(info.Product, ci)
	}
	info.finaliseStatus()
	granulesTotal.WithLabelValues(info.Product, info.Status).Inc()
}

// finaliseStatus derives the granule status from its channels unless a
// granule level failure set it already.
func (i *ConversionInfo) finaliseStatus() {
	if i.Status != "" {
		return
	}
	i.Status = StatusSkipped
	for _, ci := range i.Channels {
		if ci.Status == StatusFailed {
			i.Status = StatusFailed
			return
		}
		if ci.Status == StatusConverted {
			i.Status = StatusConverted
		}
	}
}

func (i *ConversionInfo) ToJSON() (string, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(i); err != nil {
		return "", err
	}
	return buf.String(), nil
}
