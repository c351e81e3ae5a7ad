// Package catalog records converted rasters keyed by granule metadata so
// that tile servers can find them and batch runs can skip finished work.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nci/swathgrid/granule"
)

// Entry is one catalogued raster.
type Entry struct {
	Key       granule.Key `json:"key"`
	Path      string      `json:"path"`
	Footprint string      `json:"footprint,omitempty"`
	Bounds    [4]float64  `json:"bounds"`
	Center    [2]float64  `json:"center"`
}

// Catalog is the metadata store the converter registers rasters in.
// Insert replaces any entry with the same key; callers that must not
// overwrite use Exists first.
type Catalog interface {
	Exists(ctx context.Context, key granule.Key) (bool, error)
	Insert(ctx context.Context, entry *Entry) error
	Dates(ctx context.Context, campaign, instrument string) ([]time.Time, error)
	Close() error
}

// Open returns the backend named by kind: "postgres", "sqlite" or "memory".
func Open(kind, dsn string) (Catalog, error) {
	switch strings.ToLower(kind) {
	case "postgres", "postgresql":
		return NewPostgres(dsn)
	case "sqlite", "sqlite3":
		return NewSQLite(dsn)
	case "memory", "":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown catalog kind %q", kind)
}

// DateRange summarises the acquisition dates catalogued for an instrument.
func DateRange(ctx context.Context, c Catalog, campaign, instrument string) (granule.DateRange, error) {
	dates, err := c.Dates(ctx, campaign, instrument)
	if err != nil {
		return granule.DateRange{}, err
	}
	r, ok := granule.NewDateRange(dates)
	if !ok {
		return r, fmt.Errorf("no granules catalogued for %s/%s", campaign, instrument)
	}
	return r, nil
}
