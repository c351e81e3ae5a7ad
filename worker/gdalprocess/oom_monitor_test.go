package gdalprocess

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func writeProcFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLargestProcess(t *testing.T) {
	proc := t.TempDir()
	writeProcFile(t, filepath.Join(proc, "meminfo"), "MemTotal:       16303512 kB\nMemFree:         1000000 kB\nMemAvailable:    8000000 kB\n")
	writeProcFile(t, filepath.Join(proc, "4001", "status"), "Name:\tgdal-process\nState:\tS (sleeping)\nVmRSS:\t  120000 kB\n")
	writeProcFile(t, filepath.Join(proc, "4002", "status"), "Name:\tgdal-process\nVmRSS:\t  950000 kB\n")
	writeProcFile(t, filepath.Join(proc, "4003", "status"), "Name:\tpostgres\nVmRSS:\t 4000000 kB\n")
	writeProcFile(t, filepath.Join(proc, "self", "status"), "Name:\tgdal-process\nVmRSS:\t 9999999 kB\n")

	mem, err := getMemoryInfo(proc)
	if err != nil {
		t.Fatal(err)
	}
	if mem.TotalMemory != 16303512 || mem.AvailableMemory != 8000000 {
		t.Errorf("unexpected meminfo %+v", mem)
	}

	largest, err := largestProcess(proc, regexp.MustCompile("gdal-process"))
	if err != nil {
		t.Fatal(err)
	}
	if largest == nil || largest.Pid != 4002 || largest.VmRSS != 950000 {
		t.Errorf("unexpected largest process %+v", largest)
	}

	if _, err := parseProcFields(filepath.Join(proc, "4003", "status"), []string{"Name", "VmSwap"}); err == nil {
		t.Errorf("expected error for missing field")
	}
}

func TestPollInterval(t *testing.T) {
	mon := NewOOMMonitor("gdal-process", 1000000, false)
	cases := []struct {
		available int64
		expected  time.Duration
	}{
		{500000, 0},
		{1000000, 0},
		{1100000, 100 * time.Millisecond},
		{100000000, time.Second},
	}
	for _, tc := range cases {
		if got := mon.pollInterval(&memoryInfo{AvailableMemory: tc.available}); got != tc.expected {
			t.Errorf("available %d: expected %v, got %v", tc.available, tc.expected, got)
		}
	}
}
