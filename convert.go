package main

/* swathgrid converts airborne and satellite swath granules into
   north-up GeoTIFFs on a regular latitude/longitude grid. It walks an
   input directory, selects granules with a pattern expression and
   converts every configured channel, either in this process or on the
   gRPC workers named with -remote or in the config's worker_nodes.
   One JSON summary per granule is printed to stdout; failures are
   logged and the run carries on. */

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/context"

	extr "github.com/nci/swathgrid/crawl/extractor"
	"github.com/nci/swathgrid/metrics"
	proc "github.com/nci/swathgrid/processor"
	"github.com/nci/swathgrid/utils"
)

var (
	configFile    = flag.String("config", "", "JSON or YAML config file. Built-in defaults are used if empty.")
	input         = flag.String("input", "", "Directory to search for granules.")
	pattern       = flag.String("pattern", "", "Granule selection expression. Overrides batch.pattern of the config.")
	conc          = flag.Int("conc", 0, "Number of granules converted concurrently. Overrides batch.concurrency of the config.")
	remote        = flag.String("remote", "", "Comma separated gRPC worker addresses. Overrides service_config.worker_nodes.")
	dryRun        = flag.Bool("dry_run", false, "List what would be converted without writing anything.")
	channels      = flag.String("channels", "", "Comma separated channel names. Overrides batch.channels of the config.")
	followSymlink = flag.Bool("follow_symlink", false, "Follow symbolic links while crawling.")
	logDir        = flag.String("log_dir", "", "Write per-granule conversion records under this directory.")
	verbose       = flag.Bool("v", false, "Verbose mode.")
)

var (
	Error *log.Logger
	Info  *log.Logger
)

func init() {
	Error = log.New(os.Stderr, "swathgrid: ", log.Ldate|log.Ltime)
	Info = log.New(os.Stderr, "swathgrid: ", log.Ldate|log.Ltime)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func main() {
	flag.Parse()
	if *input == "" && flag.NArg() == 1 {
		*input = flag.Arg(0)
	}
	if *input == "" {
		Error.Fatal("Please provide an input directory with -input")
	}

	config := utils.NewDefaultConfig()
	if *configFile != "" {
		if err := config.LoadConfigFile(*configFile); err != nil {
			Error.Fatal(err)
		}
	}

	if *pattern == "" {
		*pattern = config.Batch.Pattern
	}
	expr, err := extr.ParsePatternExpression(*pattern)
	if err != nil {
		Error.Fatalf("invalid pattern %q: %v", *pattern, err)
	}
	if *conc <= 0 {
		*conc = config.Batch.Concurrency
	}
	workers := config.ServiceConfig.WorkerNodes
	if *remote != "" {
		workers = splitList(*remote)
	}

	var logger metrics.Logger = metrics.NewStdoutLogger()
	if *logDir != "" {
		fl := metrics.NewFileLogger(*logDir, 0, 0, *verbose)
		defer fl.Close()
		logger = fl
	}

	var gp *proc.GranuleProcessor
	if len(workers) == 0 {
		utils.InitGdal()
		cat, err := proc.OpenCatalog(config)
		if err != nil {
			Error.Fatal(err)
		}
		defer cat.Close()
		if gp, err = proc.NewGranuleProcessor(config, cat, logger); err != nil {
			Error.Fatal(err)
		}
	} else if *verbose {
		Info.Printf("converting on %d workers: %v", len(workers), workers)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		Info.Println("interrupted, finishing granules in flight")
		cancel()
	}()

	errChan := make(chan error, 100)
	cp := proc.InitConvertPipeline(ctx, workers, gp, *conc, errChan)
	cp.MaxRecvMsgSize = config.ServiceConfig.MaxGrpcRecvMsgSize
	if config.ServiceConfig.TaskTimeout > 0 {
		cp.Timeout = time.Duration(config.ServiceConfig.TaskTimeout) * time.Second
	}
	if *verbose {
		Info.Printf("job %s: converting %s", cp.JobID, *input)
	}

	opts := proc.ConvertOptions{
		Pattern:       expr,
		Channels:      splitList(*channels),
		DryRun:        *dryRun,
		FollowSymlink: *followSymlink,
	}
	done := cp.Process(*input, opts, os.Stdout)

	failures := 0
	for {
		select {
		case err := <-errChan:
			failures++
			Error.Printf("%v", err)
		case <-done:
			for {
				select {
				case err := <-errChan:
					failures++
					Error.Printf("%v", err)
				default:
					if *verbose {
						Info.Printf("job %s: %d granules summarised", cp.JobID, cp.Printed())
					}
					if failures > 0 {
						Error.Printf("job %s finished with %d errors", cp.JobID, failures)
						os.Exit(1)
					}
					return
				}
			}
		}
	}
}
