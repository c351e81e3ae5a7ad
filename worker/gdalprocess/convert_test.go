package gdalprocess

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/net/context"

	"github.com/nci/swathgrid/metrics"
	"github.com/nci/swathgrid/utils"
	pb "github.com/nci/swathgrid/worker/gdalservice"
)

const testGranule = "/data/PACEPAX-AH2MAP-L1C_ER2_20240908T185311_RA.nc"

func serveOnce(t *testing.T, handle HandlerFunc) (string, chan error) {
	t.Helper()
	dir, err := os.MkdirTemp("", "sgp")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	addr := filepath.Join(dir, "sock")
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: addr, Net: "unix"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	done := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			done <- err
			return
		}
		done <- ServeConn(conn, handle)
	}()
	return addr, done
}

func dial(t *testing.T, addr string) *net.UnixConn {
	t.Helper()
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: addr, Net: "unix"})
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestServeConn(t *testing.T) {
	addr, done := serveOnce(t, func(ctx context.Context, req *pb.ConvertRequest) *pb.ConvertResult {
		return &pb.ConvertResult{JobID: req.JobID, Granule: req.Path, Error: pb.ResultOK, Channels: []*pb.ChannelOutput{{Name: req.Channels[0], Status: pb.StatusConverted}}}
	})

	conn := dial(t, addr)
	defer conn.Close()
	res, err := pb.RoundTrip(conn, &pb.ConvertRequest{Path: testGranule, Channels: []string{"red"}, JobID: "j"})
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if res.Granule != testGranule || res.JobID != "j" || len(res.Channels) != 1 || res.Channels[0].Name != "red" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestServeConnBadRequest(t *testing.T) {
	addr, done := serveOnce(t, func(ctx context.Context, req *pb.ConvertRequest) *pb.ConvertResult {
		t.Errorf("handler should not be called")
		return nil
	})

	conn := dial(t, addr)
	defer conn.Close()
	if _, err := conn.Write([]byte{0xff, 0xff, 0xff}); err != nil {
		t.Fatal(err)
	}
	conn.CloseWrite()

	res := &pb.ConvertResult{}
	if err := pb.ReadMessage(conn, res); err != nil {
		t.Fatal(err)
	}
	if res.Err() == nil {
		t.Errorf("expected error result")
	}
	if err := <-done; err == nil {
		t.Errorf("expected ServeConn to report the decode error")
	}
}

func TestHandlerReload(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	writeConfig := func(channels string) {
		doc := "catalog:\n  kind: memory\noutput:\n  dir: " + dir + "\nbatch:\n  channels: [" + channels + "]\n"
		if err := os.WriteFile(configFile, []byte(doc), 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeConfig("red")

	store, err := utils.NewConfigStore(configFile)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(store, metrics.NewStdoutLogger(), false)
	defer h.Close()

	res := h.Convert(context.Background(), &pb.ConvertRequest{Path: testGranule, DryRun: true})
	if res.Failed() || len(res.Channels) != 1 || res.Channels[0].Status != pb.StatusPlanned {
		t.Fatalf("unexpected result %+v", res)
	}
	first, _ := h.current()

	writeConfig("red, blue")
	if err := store.Reload(); err != nil {
		t.Fatal(err)
	}
	res = h.Convert(context.Background(), &pb.ConvertRequest{Path: testGranule, DryRun: true})
	if len(res.Channels) != 2 {
		t.Fatalf("reloaded config not applied: %+v", res.Channels)
	}
	if second, _ := h.current(); second == first {
		t.Errorf("expected a new processor after reload")
	}
}

func TestServeConnDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Minute).Round(time.Millisecond)
	addr, done := serveOnce(t, func(ctx context.Context, req *pb.ConvertRequest) *pb.ConvertResult {
		res := &pb.ConvertResult{Granule: req.Path, Error: pb.ResultOK}
		if dl, ok := ctx.Deadline(); !ok || !dl.Equal(deadline) {
			res.Error = fmt.Sprintf("handler deadline %v, %v", dl, ok)
		}
		return res
	})

	conn := dial(t, addr)
	defer conn.Close()
	res, err := pb.RoundTrip(conn, &pb.ConvertRequest{Path: testGranule, Deadline: &deadline})
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if res.Err() != nil {
		t.Error(res.Err())
	}
}

func TestServeConnExpiredDeadline(t *testing.T) {
	expired := time.Now().Add(-time.Second)
	addr, done := serveOnce(t, func(ctx context.Context, req *pb.ConvertRequest) *pb.ConvertResult {
		res := &pb.ConvertResult{Granule: req.Path, Error: pb.ResultOK}
		if ctx.Err() == nil {
			res.Error = "context still live after the deadline"
		}
		return res
	})

	conn := dial(t, addr)
	defer conn.Close()
	res, err := pb.RoundTrip(conn, &pb.ConvertRequest{Path: testGranule, Deadline: &expired})
	if err != nil {
		t.Fatal(err)
	}
	<-done
	if res.Err() != nil {
		t.Error(res.Err())
	}
}
