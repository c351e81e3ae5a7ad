package gdalprocess

import (
	"fmt"
	"log"
	"net"
	"sync"

	"golang.org/x/net/context"

	"github.com/nci/swathgrid/catalog"
	"github.com/nci/swathgrid/metrics"
	"github.com/nci/swathgrid/processor"
	"github.com/nci/swathgrid/utils"
	pb "github.com/nci/swathgrid/worker/gdalservice"
)

// HandlerFunc converts one granule request.
type HandlerFunc func(ctx context.Context, req *pb.ConvertRequest) *pb.ConvertResult

// Handler converts granules inside a gdal-process worker. The granule
// processor and its catalog connection are rebuilt after the config store
// has been reloaded.
type Handler struct {
	Store  *utils.ConfigStore
	Logger metrics.Logger
	Debug  bool

	mu     sync.Mutex
	config *utils.Config
	proc   *processor.GranuleProcessor
	cat    catalog.Catalog
}

func NewHandler(store *utils.ConfigStore, logger metrics.Logger, debug bool) *Handler {
	return &Handler{Store: store, Logger: logger, Debug: debug}
}

func (h *Handler) current() (*processor.GranuleProcessor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	config := h.Store.Get()
	if h.proc != nil && config == h.config {
		return h.proc, nil
	}

	cat, err := processor.OpenCatalog(config)
	if err != nil {
		return nil, err
	}
	proc, err := processor.NewGranuleProcessor(config, cat, h.Logger)
	if err != nil {
		cat.Close()
		return nil, err
	}
	if h.cat != nil {
		h.cat.Close()
	}
	h.config, h.proc, h.cat = config, proc, cat
	return proc, nil
}

// Convert runs req through the current granule processor.
func (h *Handler) Convert(ctx context.Context, req *pb.ConvertRequest) *pb.ConvertResult {
	proc, err := h.current()
	if err != nil {
		return &pb.ConvertResult{JobID: req.JobID, Granule: req.Path, Error: fmt.Sprintf("Error initialising converter: %v", err)}
	}
	if h.Debug {
		log.Printf("converting %s, channels: %v, dry run: %v", req.Path, req.Channels, req.DryRun)
	}
	res := proc.Process(ctx, req)
	if h.Debug {
		log.Printf("converted %s: %s", req.Path, res.Error)
	}
	return res
}

func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cat != nil {
		h.cat.Close()
		h.cat, h.proc, h.config = nil, nil, nil
	}
}

// ServeConn reads one request from conn, handles it and writes the
// result back. Requests that cannot be decoded are answered with an
// error result. The handler's context ends at the request deadline.
func ServeConn(conn net.Conn, handle HandlerFunc) error {
	defer conn.Close()

	req := &pb.ConvertRequest{}
	if err := pb.ReadMessage(conn, req); err != nil {
		out := &pb.ConvertResult{Error: fmt.Sprintf("Error reading request: %v", err)}
		if werr := pb.WriteMessage(conn, out); werr != nil {
			log.Println(werr)
		}
		return err
	}

	ctx := context.Background()
	if req.Deadline != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, *req.Deadline)
		defer cancel()
	}
	return pb.WriteMessage(conn, handle(ctx, req))
}
