package gdalprocess

import (
	"flag"
	"net"
	"os"
	"testing"
	"time"

	"golang.org/x/net/context"

	pb "github.com/nci/swathgrid/worker/gdalservice"
)

const helperEnv = "SWATHGRID_TEST_WORKER"

func TestMain(m *testing.M) {
	switch os.Getenv(helperEnv) {
	case "1":
		runTestWorker()
		return
	case "exit":
		os.Exit(3)
	}
	os.Exit(m.Run())
}

// runTestWorker stands in for gdal-process when the test binary is
// started by the pool.
func runTestWorker() {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	sock := fs.String("sock", "", "")
	fs.Bool("debug", false, "")
	fs.Parse(os.Args[1:])

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: *sock, Net: "unix"})
	if err != nil {
		os.Exit(2)
	}
	defer os.Remove(*sock)
	for {
		conn, err := l.Accept()
		if err != nil {
			os.Exit(2)
		}
		ServeConn(conn, func(ctx context.Context, req *pb.ConvertRequest) *pb.ConvertResult {
			return &pb.ConvertResult{JobID: req.JobID, Granule: req.Path, Error: pb.ResultOK}
		})
	}
}

func convert(t *testing.T, p *ProcessPool, path string) *pb.ConvertResult {
	t.Helper()
	rChan := make(chan *pb.ConvertResult, 1)
	errChan := make(chan error, 1)
	p.AddQueue(&Task{Payload: &pb.ConvertRequest{Path: path}, Resp: rChan, Error: errChan})
	select {
	case res := <-rChan:
		return res
	case err := <-errChan:
		t.Fatalf("%s: %v", path, err)
	case <-time.After(30 * time.Second):
		t.Fatalf("%s: timed out", path)
	}
	return nil
}

func TestProcessPoolRestartsWorkers(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skip(err)
	}
	os.Setenv(helperEnv, "1")
	defer os.Unsetenv(helperEnv)

	p, err := CreateProcessPool(1, exe, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		p.Signal(os.Kill)
		p.Cleanup()
	}()
	first := p.Addresses()

	for _, path := range []string{"/data/a.nc", "/data/b.nc", "/data/c.nc"} {
		if res := convert(t, p, path); res.Granule != path || res.Failed() {
			t.Errorf("unexpected result %+v", res)
		}
	}

	// the first worker exits after two tasks and is replaced
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		addrs := p.Addresses()
		if len(addrs) == 1 && addrs[0] != first[0] {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("worker %v was not replaced: %v", first, p.Addresses())
}

func TestProcessStopsServingAfterExit(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skip(err)
	}
	os.Setenv(helperEnv, "exit")
	defer os.Unsetenv(helperEnv)

	queue := make(chan *Task, 2)
	errChan := make(chan *ErrorMsg, 1)
	proc, err := NewProcess(queue, exe, errChan, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := proc.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-errChan:
		if !msg.Replace {
			t.Errorf("exit should ask for a replacement: %v", msg.Error)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("worker exit was not reported")
	}

	task := &Task{Payload: &pb.ConvertRequest{Path: "/data/a.nc"}, Resp: make(chan *pb.ConvertResult, 1), Error: make(chan error, 1)}
	queue <- task
	time.Sleep(500 * time.Millisecond)
	if len(queue) != 1 {
		t.Errorf("a dead worker took a task from the queue")
	}
	select {
	case err := <-task.Error:
		t.Errorf("task failed on a dead worker: %v", err)
	default:
	}
}
