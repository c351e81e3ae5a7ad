package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	extr "github.com/nci/swathgrid/crawl/extractor"
	"github.com/nci/swathgrid/granule"
	"github.com/nci/swathgrid/utils"
)

// checkGranule needs a real granule; set SWATHGRID_TEST_GRANULE to its path.
func checkGranule(test *testing.T, product string, channels int) {
	path := os.Getenv("SWATHGRID_TEST_GRANULE")
	if path == "" {
		test.Skip("SWATHGRID_TEST_GRANULE is not set")
	}

	info, err := extr.ExtractGranuleInfo(path, utils.NewDefaultConfig())
	if err != nil {
		test.Fatalf("ExtractGranuleInfo %s: %v", path, err)
	}

	if info.FileName != path {
		test.Errorf("GranuleInfo.FileName %s", info.FileName)
	}
	if info.Product != product {
		test.Skipf("granule is a %s product", info.Product)
	}
	if info.Channels != channels {
		test.Errorf("expected %d channels, got %d", channels, info.Channels)
	}
	if info.Height <= 0 || info.Width <= 0 {
		test.Errorf("invalid swath size %dx%d", info.Height, info.Width)
	}
	if info.Polygon == "" {
		test.Errorf("missing Polygon: %v", info)
	}
	if info.Bounds[0] > info.Bounds[2] || info.Bounds[1] > info.Bounds[3] {
		test.Errorf("invalid bounds %v", info.Bounds)
	}
}

func TestHARP2L1C(test *testing.T) {
	checkGranule(test, "HARP2_L1C", 90)
}

func TestPrintDateRanges(test *testing.T) {
	files := make(chan *extr.GranuleFile, 4)
	for _, name := range []string{
		"PACEPAX-SPEXONE-L1C_ER2_20240908T185311_RA.nc",
		"PACEPAX-AH2MAP-L1C_ER2_20240911T170000_RA.nc",
		"PACEPAX-AH2MAP-L1C_ER2_20240908T185311_RA.nc",
	} {
		md, err := granule.ParseFileName(name)
		if err != nil {
			test.Fatal(err)
		}
		files <- &extr.GranuleFile{Path: "/data/" + name, Metadata: md}
	}
	close(files)

	var buf bytes.Buffer
	if err := printDateRanges(json.NewEncoder(&buf), files, utils.NewDefaultConfig(), false); err != nil {
		test.Fatal(err)
	}

	dec := json.NewDecoder(&buf)
	var summaries []dateSummary
	for dec.More() {
		var s dateSummary
		if err := dec.Decode(&s); err != nil {
			test.Fatal(err)
		}
		summaries = append(summaries, s)
	}
	if len(summaries) != 2 {
		test.Fatalf("expected two instruments, got %+v", summaries)
	}
	ah2map := summaries[0]
	if ah2map.Instrument != "AH2MAP" || ah2map.Granules != 2 || len(ah2map.Range.Unavailable) != 2 {
		test.Errorf("unexpected summary %+v", ah2map)
	}
	if summaries[1].Instrument != "SPEXONE" || len(summaries[1].Range.Unavailable) != 0 {
		test.Errorf("unexpected summary %+v", summaries[1])
	}
}
