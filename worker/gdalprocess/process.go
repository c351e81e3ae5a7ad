package gdalprocess

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	pb "github.com/nci/swathgrid/worker/gdalservice"
)

type ErrorMsg struct {
	Address string
	Replace bool
	Error   error
}

type Task struct {
	Payload *pb.ConvertRequest
	Resp    chan *pb.ConvertResult
	Error   chan error
}

// Process is one gdal-process worker listening on a unix socket. It
// takes tasks from the shared queue until it has served MaxTasks of them,
// then exits and is replaced by the pool.
type Process struct {
	TaskQueue      chan *Task
	Address        string
	TempFile       string
	Cmd            *exec.Cmd
	CombinedOutput io.ReadCloser
	ErrorMsg       chan *ErrorMsg
	MaxTasks       int
	processed      int64
	exited         chan struct{}
}

var errExited = errors.New("worker exited")

// NewProcess prepares binary to listen on a fresh socket. extraArgs are
// passed through, e.g. -config.
func NewProcess(tQueue chan *Task, binary string, errChan chan *ErrorMsg, maxTasks int, debug bool, extraArgs ...string) (*Process, error) {
	// keep the temp file around so concurrent workers never pick the
	// same socket name
	tmpFile, err := ioutil.TempFile("", "swathgrid_rpc_")
	if err != nil {
		return nil, err
	}
	tmpFile.Close()
	tmpFileName := tmpFile.Name()
	addr := tmpFileName + "_socket"

	args := []string{"-sock", addr}
	if debug {
		args = append(args, "-debug")
	}
	args = append(args, extraArgs...)

	cmd := exec.Command(binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
	combinedOutput, err := cmd.StderrPipe()
	if err != nil {
		combinedOutput = nil
		log.Printf("Failed to obtain subprocess stderr pipe: %v\n", err)
	} else {
		cmd.Stdout = cmd.Stderr
	}

	return &Process{
		TaskQueue:      tQueue,
		Address:        addr,
		TempFile:       tmpFileName,
		Cmd:            cmd,
		CombinedOutput: combinedOutput,
		ErrorMsg:       errChan,
		MaxTasks:       maxTasks,
		exited:         make(chan struct{}),
	}, nil
}

func (p *Process) Start() error {
	err := p.Cmd.Start()
	if err != nil {
		p.RemoveTempFiles()
		p.ErrorMsg <- &ErrorMsg{p.Address, false, fmt.Errorf("Failed to start process: %v", err)}
		return err
	}

	log.Println("Process running with PID", p.Cmd.Process.Pid)

	go p.serveTasks()

	go func() {
		defer p.RemoveTempFiles()

		// relay subprocess stderr and stdout to our log, with pid
		if p.CombinedOutput != nil {
			reader := bufio.NewReader(p.CombinedOutput)
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					break
				}
				log.Println(p.Cmd.Process.Pid, line)
			}
		}

		err := p.Cmd.Wait()
		close(p.exited)
		if err == nil {
			err = fmt.Errorf("exit status 0")
		}
		p.ErrorMsg <- &ErrorMsg{p.Address, true, fmt.Errorf("Process exited after %d tasks: %v", p.Processed(), err)}
	}()

	return nil
}

// SocketWait bounds how long a worker may take to start listening.
var SocketWait = 10 * time.Second

func (p *Process) dial() (*net.UnixConn, error) {
	deadline := time.Now().Add(SocketWait)
	for {
		conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: p.Address, Net: "unix"})
		if err == nil || time.Now().After(deadline) {
			return conn, err
		}
		select {
		case <-p.exited:
			return nil, errExited
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// serveTasks feeds queued tasks to the worker until it exits. A task taken
// as the worker dies goes back on the queue for its replacement.
func (p *Process) serveTasks() {
	for {
		var task *Task
		select {
		case <-p.exited:
			return
		case t, ok := <-p.TaskQueue:
			if !ok {
				return
			}
			task = t
		}

		conn, err := p.dial()
		if err == errExited {
			go func() { p.TaskQueue <- task }()
			return
		}
		if err != nil {
			syscall.Kill(p.Cmd.Process.Pid, syscall.SIGKILL)
			task.Error <- fmt.Errorf("dial failed: %v", err)
			return
		}

		res, err := pb.RoundTrip(conn, task.Payload)
		conn.Close()
		if err != nil {
			task.Error <- err
		} else {
			task.Resp <- res
		}

		if n := atomic.AddInt64(&p.processed, 1); p.MaxTasks > 0 && n >= int64(p.MaxTasks) {
			// the exit is reported on ErrorMsg and the pool starts a
			// replacement
			syscall.Kill(p.Cmd.Process.Pid, syscall.SIGTERM)
			return
		}
	}
}

// Processed is the number of tasks this worker has served.
func (p *Process) Processed() int {
	return int(atomic.LoadInt64(&p.processed))
}

func (p *Process) RemoveTempFiles() {
	os.Remove(p.TempFile)
	os.Remove(p.Address)
}
