package processor

import (
	"fmt"
	"io"
	"time"

	goeval "github.com/edisonguo/govaluate"
	"github.com/google/uuid"
	"golang.org/x/net/context"

	extr "github.com/nci/swathgrid/crawl/extractor"
	pb "github.com/nci/swathgrid/worker/gdalservice"
)

// ConvertOptions selects what a pipeline run converts.
type ConvertOptions struct {
	Pattern       *goeval.EvaluableExpression
	Channels      []string
	DryRun        bool
	FollowSymlink bool
}

// ConvertPipeline crawls a directory for granules and converts them
// either locally or on remote gRPC workers, printing one JSON summary per
// granule. Failures are reported on Error and do not stop the run.
type ConvertPipeline struct {
	Context        context.Context
	Error          chan error
	RPCAddrs       []string
	Processor      *GranuleProcessor
	Concurrency    int
	MaxRecvMsgSize int
	Timeout        time.Duration
	JobID          string

	printer *JSONPrinter
}

func InitConvertPipeline(ctx context.Context, rpcAddrs []string, proc *GranuleProcessor, conc int, errChan chan error) *ConvertPipeline {
	return &ConvertPipeline{
		Context:     ctx,
		Error:       errChan,
		RPCAddrs:    rpcAddrs,
		Processor:   proc,
		Concurrency: conc,
		JobID:       uuid.New().String(),
	}
}

func (cp *ConvertPipeline) Process(rootPath string, opts ConvertOptions, file io.Writer) chan struct{} {
	e := NewJSONEncoder(cp.Error)
	p := NewJSONPrinter(file, cp.Error)
	cp.printer = p

	var in chan *pb.ConvertRequest
	if len(cp.RPCAddrs) > 0 {
		g := NewConvertGRPC(cp.Context, cp.RPCAddrs, cp.Concurrency, cp.Error)
		g.MaxRecvMsgSize = cp.MaxRecvMsgSize
		g.Timeout = cp.Timeout
		in, e.In = g.In, g.Out
		go g.Run()
	} else {
		if cp.Processor == nil {
			go func() { cp.Error <- fmt.Errorf("no granule processor and no gRPC workers configured") }()
			close(p.Out)
			return p.Out
		}
		l := NewLocalConverter(cp.Context, cp.Processor, cp.Concurrency, cp.Error)
		in, e.In = l.In, l.Out
		go l.Run()
	}
	p.In = e.Out

	crawler := extr.NewGranuleCrawler(cp.Concurrency, opts.Pattern, opts.FollowSymlink)
	go crawler.Crawl(rootPath)

	errorsDone := make(chan struct{})
	go func() {
		defer close(errorsDone)
		for err := range crawler.Error {
			cp.Error <- err
		}
	}()

	go func() {
		defer close(in)
		for f := range crawler.Outputs {
			in <- &pb.ConvertRequest{Path: f.Path, Channels: opts.Channels, DryRun: opts.DryRun, JobID: cp.JobID}
		}
		<-errorsDone
	}()

	go e.Run()
	go p.Run()

	return p.Out
}

// Printed reports how many summaries were written. It is only meaningful
// once the channel returned by Process is closed.
func (cp *ConvertPipeline) Printed() int {
	if cp.printer == nil {
		return 0
	}
	return cp.printer.Lines
}
