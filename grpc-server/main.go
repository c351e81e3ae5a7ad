package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "net/http/pprof"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nci/swathgrid/metrics"
	"github.com/nci/swathgrid/utils"
	gp "github.com/nci/swathgrid/worker/gdalprocess"
	pb "github.com/nci/swathgrid/worker/gdalservice"
)

// workerPool is the part of gdalprocess.ProcessPool the server drives.
type workerPool interface {
	AddQueue(task *gp.Task)
	Signal(sig os.Signal)
	Cleanup()
}

type server struct {
	Pool workerPool
}

func (s *server) Convert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := &pb.ConvertRequest{}
	if err := pb.DecodeMessage(in, req); err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		req.Deadline = &dl
	}

	rChan := make(chan *pb.ConvertResult, 1)
	errChan := make(chan error, 1)
	s.Pool.AddQueue(&gp.Task{Payload: req, Resp: rChan, Error: errChan})

	select {
	case out := <-rChan:
		metrics.Record(out.ConversionInfo())
		return pb.EncodeMessage(out)
	case err := <-errChan:
		metrics.Record(&metrics.ConversionInfo{Granule: req.Path, Status: metrics.StatusFailed, Error: err.Error()})
		return nil, fmt.Errorf("Error in conversion of %s: %v", req.Path, err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleSignals forwards SIGHUP to the workers when they were started with
// a config file to reload; otherwise it would terminate them. Any other
// signal cleans up the pool and exits.
func handleSignals(signals <-chan os.Signal, p workerPool, reload bool, exit func(int)) {
	for sig := range signals {
		if sig == syscall.SIGHUP {
			if !reload {
				log.Println("Caught SIGHUP, workers have no config file to reload")
				continue
			}
			log.Println("Caught SIGHUP, reloading worker config...")
			p.Signal(syscall.SIGHUP)
			continue
		}
		p.Cleanup()
		exit(1)
		return
	}
}

func main() {
	port := flag.Int("p", 6000, "gRPC server listening port.")
	poolSize := flag.Int("n", 8, "Maximum number of requests handled concurrently.")
	executable := flag.String("exec", "", "gdal-process executable filepath")
	configFile := flag.String("config", "", "JSON or YAML config file passed to gdal-process workers")
	maxTasks := flag.Int("max_tasks", 0, "Restart a worker after it has converted this many granules. 0 means never.")
	oomThreshold := flag.Int64("oom_threshold", 0, "Kill the largest worker when available memory falls below this many KB. 0 disables.")
	debugPort := flag.Int("debug_port", 6060, "Port serving /metrics and pprof. 0 disables.")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	if *executable == "" {
		self, err := os.Executable()
		if err != nil {
			log.Fatalf("no gdal-process executable: %v", err)
		}
		*executable = filepath.Join(filepath.Dir(self), "gdal-process")
	}

	var extraArgs []string
	if *configFile != "" {
		if _, err := utils.NewConfigStore(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		extraArgs = append(extraArgs, "-config", *configFile)
	}

	p, err := gp.CreateProcessPool(*poolSize, *executable, *maxTasks, *debug, extraArgs...)
	if err != nil {
		log.Printf("Failed to create process pool: %v", err)
		os.Exit(2)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go handleSignals(signals, p, *configFile != "", os.Exit)

	if *oomThreshold > 0 {
		mon := gp.NewOOMMonitor(filepath.Base(*executable), *oomThreshold, *debug)
		go func() {
			if err := mon.StartMonitorLoop(); err != nil {
				log.Printf("OOM monitor stopped: %v", err)
			}
		}()
	}

	if *debugPort > 0 {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Println(http.ListenAndServe(fmt.Sprintf(":%d", *debugPort), nil))
		}()
	}

	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(utils.DefaultRecvMsgSize),
		grpc.MaxSendMsgSize(utils.DefaultRecvMsgSize),
	)
	pb.RegisterConverterServer(s, &server{Pool: p})

	lis, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	log.Printf("Converter listening on :%d with %d workers", *port, *poolSize)
	if err := s.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
