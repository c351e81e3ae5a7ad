package extractor

import (
	"time"

	"github.com/nci/swathgrid/granule"
)

type VariableInfo struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

// GranuleInfo is the crawl summary of one swath granule.
type GranuleInfo struct {
	FileName  string           `json:"filename"`
	Product   string           `json:"product"`
	Metadata  granule.Metadata `json:"metadata"`
	Height    int              `json:"height"`
	Width     int              `json:"width"`
	Channels  int              `json:"channels"`
	Groups    int              `json:"groups"`
	Variables []*VariableInfo  `json:"variables"`
	Polygon   string           `json:"polygon"`
	Bounds    [4]float64       `json:"bounds"`
	Center    [2]float64       `json:"center"`
	Posix     *PosixInfo       `json:"posix,omitempty"`
}

// GranuleFile is a crawled file whose name follows the granule naming
// convention.
type GranuleFile struct {
	Path     string           `json:"path"`
	Metadata granule.Metadata `json:"metadata"`
	Posix    *PosixInfo       `json:"posix"`
}

type PosixInfo struct {
	FilePath string    `json:"file_path"`
	INode    uint64    `json:"inode"`
	Size     int64     `json:"size"`
	MTime    time.Time `json:"mtime"`
	CTime    time.Time `json:"ctime"`
	ID       string    `json:"id"`
}
