package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/nci/swathgrid/catalog"
	extr "github.com/nci/swathgrid/crawl/extractor"
	"github.com/nci/swathgrid/granule"
	proc "github.com/nci/swathgrid/processor"
	"github.com/nci/swathgrid/utils"
)

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configFile := flag.String("config", "", "Configuration file with product layouts. Built-in layouts are used if empty.")
	conc := flag.Int("conc", 4, "Number of directories read concurrently.")
	pattern := flag.String("pattern", "", "Granule selection expression over path, name, type, campaign, instrument, level, platform and date.")
	followSymlink := flag.Bool("follow_symlink", false, "Follow symbolic links.")
	info := flag.Bool("info", false, "Open each crawled granule and print its dimensions and footprint.")
	dates := flag.Bool("dates", false, "Print the date range and missing days per campaign and instrument instead of granules.")
	fromCatalog := flag.Bool("catalog", false, "With -dates, summarise what the configured catalog holds for the crawled instruments.")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Please provide a path to a granule, a directory or '-' for reading from stdin")
	}

	path := flag.Arg(0)
	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Scan()
		path = scanner.Text()
	}

	config := utils.NewDefaultConfig()
	if *configFile != "" {
		ensure(config.LoadConfigFile(*configFile))
	}

	fi, err := os.Stat(path)
	ensure(err)

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)

	if !fi.IsDir() {
		granuleInfo, err := extr.ExtractGranuleInfo(path, config)
		ensure(err)
		ensure(enc.Encode(granuleInfo))
		return
	}

	expr, err := extr.ParsePatternExpression(*pattern)
	ensure(err)

	crawler := extr.NewGranuleCrawler(*conc, expr, *followSymlink)
	go crawler.Crawl(path)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range crawler.Error {
			log.Printf("crawl: %v", err)
		}
	}()

	if *dates {
		ensure(printDateRanges(enc, crawler.Outputs, config, *fromCatalog))
		wg.Wait()
		return
	}

	for f := range crawler.Outputs {
		if !*info {
			ensure(enc.Encode(f))
			continue
		}
		granuleInfo, err := extr.ExtractGranuleInfo(f.Path, config)
		if err != nil {
			log.Printf("crawl: %v", err)
			continue
		}
		ensure(enc.Encode(granuleInfo))
	}
	wg.Wait()
}

type dateSummary struct {
	Campaign   string            `json:"campaign"`
	Instrument string            `json:"instrument"`
	Granules   int               `json:"granules"`
	Range      granule.DateRange `json:"range"`
}

func printDateRanges(enc *json.Encoder, files chan *extr.GranuleFile, config *utils.Config, fromCatalog bool) error {
	type instrument struct{ campaign, name string }
	found := make(map[instrument][]time.Time)
	var order []instrument
	for f := range files {
		k := instrument{f.Metadata.Campaign, f.Metadata.Instrument}
		if _, ok := found[k]; !ok {
			order = append(order, k)
		}
		found[k] = append(found[k], f.Metadata.Time)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].campaign != order[j].campaign {
			return order[i].campaign < order[j].campaign
		}
		return order[i].name < order[j].name
	})

	var cat catalog.Catalog
	if fromCatalog {
		var err error
		if cat, err = proc.OpenCatalog(config); err != nil {
			return err
		}
		defer cat.Close()
	}

	for _, k := range order {
		summary := dateSummary{Campaign: k.campaign, Instrument: k.name, Granules: len(found[k])}
		if cat != nil {
			r, err := catalog.DateRange(context.Background(), cat, k.campaign, k.name)
			if err != nil {
				log.Printf("crawl: %v", err)
				continue
			}
			summary.Range = r
		} else {
			summary.Range, _ = granule.NewDateRange(found[k])
		}
		if err := enc.Encode(summary); err != nil {
			return err
		}
	}
	return nil
}
