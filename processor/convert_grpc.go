package processor

import (
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/net/context"
	"google.golang.org/grpc"

	pb "github.com/nci/swathgrid/worker/gdalservice"
)

// ConvertGRPC sends granules to remote grpc-server workers chosen at
// random.
type ConvertGRPC struct {
	Context        context.Context
	In             chan *pb.ConvertRequest
	Out            chan *pb.ConvertResult
	Error          chan error
	Clients        []string
	MaxRecvMsgSize int
	Timeout        time.Duration
	conc           int
}

func NewConvertGRPC(ctx context.Context, serverAddress []string, conc int, errChan chan error) *ConvertGRPC {
	if conc < 1 {
		conc = 1
	}
	return &ConvertGRPC{
		Context: ctx,
		In:      make(chan *pb.ConvertRequest, 100),
		Out:     make(chan *pb.ConvertResult, 100),
		Error:   errChan,
		Clients: serverAddress,
		conc:    conc,
	}
}

func (gi *ConvertGRPC) Run() {
	defer close(gi.Out)

	opts := []grpc.DialOption{grpc.WithInsecure()}
	if gi.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(gi.MaxRecvMsgSize)))
	}

	var clients []pb.ConverterClient
	for _, addr := range gi.Clients {
		conn, err := grpc.Dial(addr, opts...)
		if err != nil {
			gi.Error <- fmt.Errorf("gRPC connection problem %s: %v", addr, err)
			continue
		}
		defer conn.Close()
		clients = append(clients, pb.NewConverterClient(conn))
	}
	if len(clients) == 0 {
		gi.Error <- fmt.Errorf("no gRPC workers available in %v", gi.Clients)
		for range gi.In {
		}
		return
	}

	cl := NewConcLimiter(gi.conc)
	cancelled := false
	for req := range gi.In {
		if gi.Context.Err() != nil {
			if !cancelled {
				gi.Error <- fmt.Errorf("Convert gRPC context has been cancelled: %v", gi.Context.Err())
				cancelled = true
			}
			continue
		}
		cl.Increase()
		go func(r *pb.ConvertRequest) {
			defer cl.Decrease()

			ctx := gi.Context
			if gi.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, gi.Timeout)
				defer cancel()
			}

			c := clients[rand.Intn(len(clients))]
			res, err := pb.Convert(ctx, c, r)
			if err != nil {
				res = &pb.ConvertResult{JobID: r.JobID, Granule: r.Path, Error: err.Error()}
			}
			if err := res.Err(); err != nil {
				gi.Error <- err
			}
			gi.Out <- res
		}(req)
	}
	cl.Wait()
}
