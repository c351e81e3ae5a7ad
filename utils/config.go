package utils

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"gopkg.in/yaml.v2"

	"github.com/nci/swathgrid/granule"
	"github.com/nci/swathgrid/swath"
)

var EtcDir = "."
var DataDir = "."

const DefaultRecvMsgSize = 64 * 1024 * 1024

type ServiceConfig struct {
	WorkerNodes        []string `json:"worker_nodes" yaml:"worker_nodes"`
	MaxGrpcRecvMsgSize int      `json:"max_grpc_recv_msg_size" yaml:"max_grpc_recv_msg_size"`
	TaskTimeout        int      `json:"task_timeout" yaml:"task_timeout"`
}

// CatalogConfig selects where converted rasters are registered.
type CatalogConfig struct {
	Kind            string `json:"kind" yaml:"kind"`
	DSN             string `json:"dsn" yaml:"dsn"`
	Schema          string `json:"schema" yaml:"schema"`
	MemcacheAddress string `json:"memcache_address" yaml:"memcache_address"`
	Pool            int    `json:"pool" yaml:"pool"`
	InsertRetries   int    `json:"insert_retries" yaml:"insert_retries"`
	RetryDelayMs    int    `json:"retry_delay_ms" yaml:"retry_delay_ms"`
}

type ResampleConfig struct {
	Method    string   `json:"method" yaml:"method"`
	MaxRadius float64  `json:"max_radius" yaml:"max_radius"`
	Epsilon   *float64 `json:"epsilon" yaml:"epsilon"`
}

// Options converts the config into resampler options.
func (rc ResampleConfig) Options() (swath.ResampleOptions, error) {
	m, err := swath.ParseMethod(rc.Method)
	if err != nil {
		return swath.ResampleOptions{}, err
	}
	opts := swath.ResampleOptions{Method: m, MaxRadius: rc.MaxRadius, Epsilon: swath.DefaultEpsilon}
	if rc.Epsilon != nil {
		opts.Epsilon = *rc.Epsilon
	}
	return opts, nil
}

type QuicklookConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	StretchMin float64 `json:"stretch_min" yaml:"stretch_min"`
	StretchMax float64 `json:"stretch_max" yaml:"stretch_max"`
	MaxSize    int     `json:"max_size" yaml:"max_size"`
}

type S3Config struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Prefix string `json:"prefix" yaml:"prefix"`
	Region string `json:"region" yaml:"region"`
}

type OutputConfig struct {
	Dir          string          `json:"dir" yaml:"dir"`
	SkipExisting bool            `json:"skip_existing" yaml:"skip_existing"`
	RGBComposite bool            `json:"rgb_composite" yaml:"rgb_composite"`
	TemplateDir  string          `json:"template_dir" yaml:"template_dir"`
	Quicklook    QuicklookConfig `json:"quicklook" yaml:"quicklook"`
	S3           S3Config        `json:"s3" yaml:"s3"`
}

// BatchConfig drives directory conversions. Pattern is a govaluate
// expression over the variables path, name, campaign, instrument, level
// and platform.
type BatchConfig struct {
	Pattern     string   `json:"pattern" yaml:"pattern"`
	Concurrency int      `json:"concurrency" yaml:"concurrency"`
	Channels    []string `json:"channels" yaml:"channels"`
}

// BandGroup describes one data variable of a product. Axes not named
// here are read at index 0 unless listed in FixedAxes. GroupAxis is -1
// when the variable has no group axis.
type BandGroup struct {
	Variable    string      `json:"variable" yaml:"variable"`
	RowAxis     int         `json:"row_axis" yaml:"row_axis"`
	ColAxis     int         `json:"col_axis" yaml:"col_axis"`
	ChannelAxis int         `json:"channel_axis" yaml:"channel_axis"`
	GroupAxis   int         `json:"group_axis" yaml:"group_axis"`
	FixedAxes   map[int]int `json:"fixed_axes" yaml:"fixed_axes"`
}

// Product describes how to read one family of granules. BandGroups are
// stitched along the channel axis in order.
type Product struct {
	Name       string         `json:"name" yaml:"name"`
	Match      string         `json:"match" yaml:"match"`
	Latitude   string         `json:"latitude" yaml:"latitude"`
	Longitude  string         `json:"longitude" yaml:"longitude"`
	BandGroups []BandGroup    `json:"band_groups" yaml:"band_groups"`
	Group      int            `json:"group" yaml:"group"`
	Channels   map[string]int `json:"channels" yaml:"channels"`

	match *regexp.Regexp
}

// Matches reports whether a granule file name belongs to the product.
func (p *Product) Matches(fileName string) bool {
	if p.match == nil {
		return false
	}
	return p.match.MatchString(filepath.Base(fileName))
}

// Config is the struct representing the configuration of a conversion
// deployment: the worker nodes, the catalog, resampling, outputs and the
// product layouts granules are read with.
type Config struct {
	ServiceConfig ServiceConfig  `json:"service_config" yaml:"service_config"`
	Catalog       CatalogConfig  `json:"catalog" yaml:"catalog"`
	Resample      ResampleConfig `json:"resample" yaml:"resample"`
	Output        OutputConfig   `json:"output" yaml:"output"`
	Batch         BatchConfig    `json:"batch" yaml:"batch"`
	Products      []Product      `json:"products" yaml:"products"`
}

// DefaultProducts are the AH2MAP/HARP2 L1C and OCI L1B layouts.
func DefaultProducts() []Product {
	return []Product{
		{
			Name:      "HARP2_L1C",
			Match:     `^[A-Z0-9]+-(AH2MAP|HARP2)-L1C_.*\.nc$`,
			Latitude:  "/geolocation_data/latitude",
			Longitude: "/geolocation_data/longitude",
			BandGroups: []BandGroup{
				{Variable: "/observation_data/i", RowAxis: 0, ColAxis: 1, ChannelAxis: 2, GroupAxis: 3},
			},
			Group:    0,
			Channels: map[string]int{"red": 40, "green": 4, "blue": 84, "infrared": 74},
		},
		{
			Name:      "OCI_L1B",
			Match:     `^[A-Z0-9]+-OCI-L1B_.*\.nc$`,
			Latitude:  "/geolocation_data/latitude",
			Longitude: "/geolocation_data/longitude",
			BandGroups: []BandGroup{
				{Variable: "/observation_data/rhot_blue", RowAxis: 1, ColAxis: 2, ChannelAxis: 0, GroupAxis: -1},
				{Variable: "/observation_data/rhot_red", RowAxis: 1, ColAxis: 2, ChannelAxis: 0, GroupAxis: -1},
			},
			Channels: map[string]int{"blue": 60, "green": 100, "red": 140},
		},
	}
}

// ProductFor returns the first product matching the file name.
func (config *Config) ProductFor(fileName string) (*Product, error) {
	for i := range config.Products {
		if config.Products[i].Matches(fileName) {
			return &config.Products[i], nil
		}
	}
	return nil, fmt.Errorf("no product layout matches %s", filepath.Base(fileName))
}

// KeySchema returns the catalog key schema.
func (config *Config) KeySchema() granule.Schema {
	s, _ := granule.ParseSchema(config.Catalog.Schema)
	return s
}

// ApplyDefaults fills unset fields.
func (config *Config) ApplyDefaults() {
	if config.ServiceConfig.MaxGrpcRecvMsgSize <= 0 {
		config.ServiceConfig.MaxGrpcRecvMsgSize = DefaultRecvMsgSize
	}
	if config.Catalog.Kind == "" {
		config.Catalog.Kind = "sqlite"
		if config.Catalog.DSN == "" {
			config.Catalog.DSN = filepath.Join(DataDir, "swathgrid.sqlite")
		}
	}
	if config.Catalog.InsertRetries <= 0 {
		config.Catalog.InsertRetries = 3
	}
	if config.Catalog.RetryDelayMs <= 0 {
		config.Catalog.RetryDelayMs = 200
	}
	if config.Resample.Method == "" {
		config.Resample.Method = "nearest"
	}
	if config.Resample.MaxRadius <= 0 {
		config.Resample.MaxRadius = 8000
	}
	if config.Output.Dir == "" {
		config.Output.Dir = filepath.Join(DataDir, "geotiffs")
	}
	if config.Output.TemplateDir == "" {
		config.Output.TemplateDir = filepath.Join(EtcDir, "templates")
	}
	if config.Output.Quicklook.StretchMax <= config.Output.Quicklook.StretchMin {
		config.Output.Quicklook.StretchMin = 0
		config.Output.Quicklook.StretchMax = 0.25
	}
	if config.Output.Quicklook.MaxSize <= 0 {
		config.Output.Quicklook.MaxSize = 1024
	}
	if config.Batch.Pattern == "" {
		config.Batch.Pattern = `name =~ "PACEPAX-AH2MAP-L1C_ER2_.*_R.*\\.nc$"`
	}
	if config.Batch.Concurrency <= 0 {
		config.Batch.Concurrency = 1
	}
	if len(config.Products) == 0 {
		config.Products = DefaultProducts()
	}
}

// Validate checks the config and compiles product patterns.
func (config *Config) Validate() error {
	if _, err := config.Resample.Options(); err != nil {
		return err
	}
	if _, err := granule.ParseSchema(config.Catalog.Schema); err != nil {
		return err
	}
	for i := range config.Products {
		p := &config.Products[i]
		re, err := regexp.Compile(p.Match)
		if err != nil {
			return fmt.Errorf("product %s: invalid match pattern: %v", p.Name, err)
		}
		p.match = re
		if p.Latitude == "" || p.Longitude == "" {
			return fmt.Errorf("product %s: latitude and longitude variables are required", p.Name)
		}
		if len(p.BandGroups) == 0 {
			return fmt.Errorf("product %s: at least one band group is required", p.Name)
		}
		for _, bg := range p.BandGroups {
			axes := map[int]bool{bg.RowAxis: true, bg.ColAxis: true, bg.ChannelAxis: true}
			if len(axes) != 3 || (bg.GroupAxis >= 0 && axes[bg.GroupAxis]) {
				return fmt.Errorf("product %s: variable %s has overlapping axes", p.Name, bg.Variable)
			}
		}
		if len(p.Channels) == 0 {
			return fmt.Errorf("product %s: channel table is empty", p.Name)
		}
	}
	return nil
}

// LoadConfigFile reads a JSON or YAML (by extension) config document,
// applies defaults and validates it.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(cfg, config)
	default:
		err = json.Unmarshal(cfg, config)
	}
	if err != nil {
		return fmt.Errorf("Error parsing config document: %s. Error: %v", configFile, err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return fmt.Errorf("Invalid config document: %s. Error: %v", configFile, err)
	}
	return nil
}

// NewDefaultConfig returns a validated config with every default applied.
func NewDefaultConfig() *Config {
	config := &Config{}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return config
}

// ConfigStore holds the current config of a long running process.
type ConfigStore struct {
	mu     sync.RWMutex
	path   string
	config *Config
}

// NewConfigStore loads path, or the defaults when path is empty.
func NewConfigStore(path string) (*ConfigStore, error) {
	s := &ConfigStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ConfigStore) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *ConfigStore) Reload() error {
	config := NewDefaultConfig()
	if s.path != "" {
		config = &Config{}
		if err := config.LoadConfigFile(s.path); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
	return nil
}

func WatchConfig(infoLog, errLog *log.Logger, store *ConfigStore) {
	// Catch SIGHUP to automatically reload config
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			infoLog.Println("Caught SIGHUP, reloading config...")
			if err := store.Reload(); err != nil {
				errLog.Printf("Error in loading config file: %v\n", err)
			}
		}
	}()
}
