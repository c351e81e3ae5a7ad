package gdalprocess

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// procFields holds the requested fields of a /proc status style file.
// Sizes given in kB are parsed into KBytes, everything else is kept as a
// string.
type procFields struct {
	KBytes  map[string]int64
	Strings map[string]string
}

func parseProcFields(procPath string, keys []string) (*procFields, error) {
	data, err := ioutil.ReadFile(procPath)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		wanted[key] = false
	}

	fields := &procFields{KBytes: make(map[string]int64), Strings: make(map[string]string)}
	for _, line := range strings.Split(string(data), "\n") {
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		if _, ok := wanted[key]; !ok {
			continue
		}
		wanted[key] = true

		val := strings.TrimSpace(kv[1])
		if num := strings.TrimSuffix(val, " kB"); num != val {
			kb, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to parse %s", procPath, line)
			}
			fields.KBytes[key] = kb
		} else {
			fields.Strings[key] = val
		}
	}

	for k, found := range wanted {
		if !found {
			return nil, fmt.Errorf("%s: %s not found", procPath, k)
		}
	}
	return fields, nil
}

type memoryInfo struct {
	TotalMemory     int64
	AvailableMemory int64
}

func getMemoryInfo(procDir string) (*memoryInfo, error) {
	info, err := parseProcFields(filepath.Join(procDir, "meminfo"), []string{"MemTotal", "MemAvailable"})
	if err != nil {
		return nil, err
	}
	return &memoryInfo{TotalMemory: info.KBytes["MemTotal"], AvailableMemory: info.KBytes["MemAvailable"]}, nil
}

type processStatus struct {
	Name  string
	VmRSS int64
	Pid   int
}

// largestProcess finds the process whose name matches pattern with the
// largest resident set, skipping this process.
func largestProcess(procDir string, pattern *regexp.Regexp) (*processStatus, error) {
	entries, err := ioutil.ReadDir(procDir)
	if err != nil {
		return nil, err
	}

	var largest *processStatus
	currentPid := os.Getpid()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 1 || pid == currentPid {
			continue
		}

		info, err := parseProcFields(filepath.Join(procDir, entry.Name(), "status"), []string{"Name", "VmRSS"})
		if err != nil {
			continue
		}
		if !pattern.MatchString(info.Strings["Name"]) {
			continue
		}
		if largest == nil || info.KBytes["VmRSS"] > largest.VmRSS {
			largest = &processStatus{Name: info.Strings["Name"], Pid: pid, VmRSS: info.KBytes["VmRSS"]}
		}
	}
	return largest, nil
}

// OOMMonitor kills the largest gdal-process worker when available memory
// falls below OOMThreshold kB, before the kernel OOM killer picks the
// gRPC server itself. The pool restarts killed workers.
type OOMMonitor struct {
	ExecMatch    string
	OOMThreshold int64
	Verbose      bool
	ProcDir      string
}

func NewOOMMonitor(execMatch string, oomThreshold int64, verbose bool) *OOMMonitor {
	return &OOMMonitor{
		ExecMatch:    execMatch,
		OOMThreshold: oomThreshold,
		Verbose:      verbose,
		ProcDir:      "/proc",
	}
}

// pollInterval predicts how long memory takes to fill at 6000 MB/s,
// bounded to [100ms, 1s]. Zero means the threshold has been crossed.
func (mon *OOMMonitor) pollInterval(memInfo *memoryInfo) time.Duration {
	const fillRate = 6000 * 1024

	remaining := memInfo.AvailableMemory - mon.OOMThreshold
	if remaining <= 0 {
		return 0
	}
	predicted := time.Duration(float64(remaining) / fillRate * float64(time.Second))
	if predicted < 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	if predicted > time.Second {
		return time.Second
	}
	return predicted
}

func (mon *OOMMonitor) StartMonitorLoop() error {
	pattern, err := regexp.Compile(mon.ExecMatch)
	if err != nil {
		return err
	}

	first := true
	for {
		memInfo, err := getMemoryInfo(mon.ProcDir)
		if err != nil {
			return err
		}
		if mon.Verbose && first {
			log.Printf("meminfo (KB), total: %d, available: %d, OOM threshold: %d", memInfo.TotalMemory, memInfo.AvailableMemory, mon.OOMThreshold)
			first = false
		}

		if interval := mon.pollInterval(memInfo); interval > 0 {
			time.Sleep(interval)
			continue
		}

		proc, err := largestProcess(mon.ProcDir, pattern)
		if err != nil {
			return err
		}
		if proc == nil {
			time.Sleep(time.Second)
			continue
		}

		syscall.Kill(proc.Pid, syscall.SIGKILL)
		if mon.Verbose {
			log.Printf("OOM SIGKILL sent to process: %s, PID: %d, RSS: %d KB", proc.Name, proc.Pid, proc.VmRSS)
		}
		for i := 0; i < 100; i++ {
			if syscall.Kill(proc.Pid, 0) != nil {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}
