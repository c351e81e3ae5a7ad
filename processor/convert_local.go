package processor

import (
	"fmt"

	"golang.org/x/net/context"

	pb "github.com/nci/swathgrid/worker/gdalservice"
)

// LocalConverter runs granule conversions in this process.
type LocalConverter struct {
	Context   context.Context
	In        chan *pb.ConvertRequest
	Out       chan *pb.ConvertResult
	Error     chan error
	Processor *GranuleProcessor
	conc      int
}

func NewLocalConverter(ctx context.Context, proc *GranuleProcessor, conc int, errChan chan error) *LocalConverter {
	if conc < 1 {
		conc = 1
	}
	return &LocalConverter{
		Context:   ctx,
		In:        make(chan *pb.ConvertRequest, 100),
		Out:       make(chan *pb.ConvertResult, 100),
		Error:     errChan,
		Processor: proc,
		conc:      conc,
	}
}

func (lc *LocalConverter) Run() {
	defer close(lc.Out)

	cl := NewConcLimiter(lc.conc)
	cancelled := false
	for req := range lc.In {
		if lc.Context.Err() != nil {
			if !cancelled {
				lc.Error <- fmt.Errorf("Convert context has been cancelled: %v", lc.Context.Err())
				cancelled = true
			}
			continue
		}
		cl.Increase()
		go func(r *pb.ConvertRequest) {
			defer cl.Decrease()
			res := lc.Processor.Process(lc.Context, r)
			if err := res.Err(); err != nil {
				lc.Error <- err
			}
			lc.Out <- res
		}(req)
	}
	cl.Wait()
}
