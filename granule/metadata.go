// Package granule extracts catalog metadata from swath granule file names of
// the form <CAMPAIGN>-<INSTRUMENT>-<LEVEL>_<PLATFORM>_<YYYYMMDD>T<HHMMSS>_<SUFFIX>.nc
package granule

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DateLayout is how granule dates are rendered in catalog keys.
const DateLayout = "2006-01-02_15:04:05"

var datePattern = regexp.MustCompile(`_(\d{4})(\d{2})(\d{2})T(\d{2})(\d{2})(\d{2})`)

// Metadata is the fixed set of fields parsed from a granule file name.
type Metadata struct {
	Campaign   string    `json:"campaign"`
	Instrument string    `json:"instrument"`
	Level      string    `json:"level"`
	Platform   string    `json:"platform,omitempty"`
	Suffix     string    `json:"suffix,omitempty"`
	Time       time.Time `json:"time"`
	FileName   string    `json:"file_name"`
}

// UnrecognizedFilenameError reports a file name that does not follow the
// granule naming convention.
type UnrecognizedFilenameError struct {
	FileName string
	Reason   string
}

func (e *UnrecognizedFilenameError) Error() string {
	return fmt.Sprintf("unrecognized granule file name %q: %s", e.FileName, e.Reason)
}

// ParseFileName parses the base name of path. Either every field is
// populated or an *UnrecognizedFilenameError is returned.
func ParseFileName(path string) (Metadata, error) {
	name := filepath.Base(path)

	m := datePattern.FindStringSubmatchIndex(name)
	if m == nil {
		return Metadata{}, &UnrecognizedFilenameError{FileName: name, Reason: "no acquisition timestamp"}
	}
	stamp := name[m[2]:m[13]]
	ts, err := time.Parse("20060102T150405", stamp)
	if err != nil {
		return Metadata{}, &UnrecognizedFilenameError{FileName: name, Reason: fmt.Sprintf("invalid timestamp %s", stamp)}
	}

	tokens := strings.Split(name, "_")
	product := strings.Split(tokens[0], "-")
	if len(product) < 3 {
		return Metadata{}, &UnrecognizedFilenameError{FileName: name, Reason: "product token is not CAMPAIGN-INSTRUMENT-LEVEL"}
	}
	for _, p := range product[:3] {
		if p == "" {
			return Metadata{}, &UnrecognizedFilenameError{FileName: name, Reason: "empty product field"}
		}
	}

	md := Metadata{
		Campaign:   product[0],
		Instrument: product[1],
		Level:      product[2],
		Time:       ts,
		FileName:   name,
	}

	// platform sits between the product token and the timestamp
	head := name[len(tokens[0]):m[0]]
	md.Platform = strings.Trim(head, "_")

	tail := strings.TrimPrefix(name[m[1]:], "_")
	md.Suffix = strings.TrimSuffix(tail, filepath.Ext(tail))
	return md, nil
}

// Date renders the acquisition time as YYYY-MM-DD_HH:MM:SS.
func (m Metadata) Date() string {
	return m.Time.Format(DateLayout)
}

// Stem is the file name without its extension.
func (m Metadata) Stem() string {
	return strings.TrimSuffix(m.FileName, filepath.Ext(m.FileName))
}
