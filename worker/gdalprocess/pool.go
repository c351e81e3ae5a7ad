package gdalprocess

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
)

const DefaultQueueSizePerProcess = 200

// ProcessPool keeps PoolSize gdal-process workers alive and feeds them
// from one task queue.
type ProcessPool struct {
	Pool             []*Process
	PoolSize         int
	TaskQueue        chan *Task
	MaxTaskProcessed int
	ErrorMsg         chan *ErrorMsg
	Executable       string
	ExtraArgs        []string
	Verbose          bool
	mu               sync.Mutex
}

func (p *ProcessPool) AddQueue(task *Task) {
	if len(p.TaskQueue) > DefaultQueueSizePerProcess*p.PoolSize-10 {
		task.Error <- fmt.Errorf("Pool TaskQueue is full")
		return
	}
	p.TaskQueue <- task
}

// CreateProcess starts a worker. Task limits are jittered so that workers
// do not all restart at once.
func (p *ProcessPool) CreateProcess() (*Process, error) {
	maxTasks := p.MaxTaskProcessed
	if maxTasks > 0 {
		maxTasks += rand.Intn(p.PoolSize)
	}
	proc, err := NewProcess(p.TaskQueue, p.Executable, p.ErrorMsg, maxTasks, p.Verbose, p.ExtraArgs...)
	if err != nil {
		return nil, err
	}
	return proc, proc.Start()
}

// Addresses lists the sockets of the live workers.
func (p *ProcessPool) Addresses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var addrs []string
	for _, proc := range p.Pool {
		if proc != nil {
			addrs = append(addrs, proc.Address)
		}
	}
	return addrs
}

// Cleanup removes the socket files of every worker.
func (p *ProcessPool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, proc := range p.Pool {
		if proc != nil {
			proc.RemoveTempFiles()
		}
	}
}

// Signal forwards sig to every live worker.
func (p *ProcessPool) Signal(sig os.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, proc := range p.Pool {
		if proc != nil && proc.Cmd.Process != nil {
			if err := proc.Cmd.Process.Signal(sig); err != nil && p.Verbose {
				log.Printf("Process: %v, signal %v: %v", proc.Address, sig, err)
			}
		}
	}
}

func (p *ProcessPool) replace(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ip, proc := range p.Pool {
		if proc != nil && address == proc.Address {
			p.Pool[ip] = nil
			proc, err := p.CreateProcess()
			if err == nil {
				p.Pool[ip] = proc
			} else {
				log.Printf("Process: failed to restart: %v", err)
			}
			break
		}
	}
}

func CreateProcessPool(n int, executable string, maxTaskProcessed int, verbose bool, extraArgs ...string) (*ProcessPool, error) {
	if n < 1 {
		n = 1
	}
	p := &ProcessPool{
		PoolSize:         n,
		TaskQueue:        make(chan *Task, DefaultQueueSizePerProcess*n),
		MaxTaskProcessed: maxTaskProcessed,
		ErrorMsg:         make(chan *ErrorMsg),
		Executable:       executable,
		ExtraArgs:        extraArgs,
		Verbose:          verbose,
	}

	go func() {
		for err := range p.ErrorMsg {
			if err.Replace {
				if verbose {
					log.Printf("Process: %v, %v, restarting...", err.Address, err.Error)
				}
				go p.replace(err.Address)
			} else if verbose {
				log.Printf("Process: %v, %v", err.Address, err.Error)
			}
		}
	}()

	for i := 0; i < n; i++ {
		proc, err := p.CreateProcess()
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.Pool = append(p.Pool, proc)
		p.mu.Unlock()
	}

	return p, nil
}
