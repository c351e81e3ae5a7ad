package metrics

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type memLogger struct {
	infos []*ConversionInfo
}

func (l *memLogger) Log(info *ConversionInfo) {
	l.infos = append(l.infos, info)
}

func TestMetricsCollectorStatus(t *testing.T) {
	logger := &memLogger{}
	m := NewMetricsCollector(logger)
	m.Info.Product = "collector_test"
	m.AddChannel(&ChannelInfo{Channel: "red", Status: StatusSkipped})
	m.AddChannel(&ChannelInfo{Channel: "green", Status: StatusConverted, NoDataPixels: 7})
	m.Log()

	if len(logger.infos) != 1 {
		t.Fatalf("expected one record, got %d", len(logger.infos))
	}
	if logger.infos[0].Status != StatusConverted {
		t.Errorf("expected %s, got %s", StatusConverted, logger.infos[0].Status)
	}
	if v := testutil.ToFloat64(channelsTotal.WithLabelValues("collector_test", StatusConverted)); v != 1 {
		t.Errorf("converted channels counter %v", v)
	}
	if v := testutil.ToFloat64(noDataPixels.WithLabelValues("collector_test")); v != 7 {
		t.Errorf("nodata pixel counter %v", v)
	}

	f := NewMetricsCollector(nil)
	f.Info.Product = "collector_test"
	f.AddChannel(&ChannelInfo{Channel: "red", Status: StatusConverted})
	f.Fail(errors.New("boom"))
	f.Log()
	if f.Info.Status != StatusFailed || f.Info.Error != "boom" {
		t.Errorf("unexpected failed record %+v", f.Info)
	}
}

func TestFileLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	logger := NewFileLogger(dir, 1, 2, false)
	for i := 0; i < 5; i++ {
		logger.Log(&ConversionInfo{Granule: "g", Status: StatusConverted})
	}
	logger.Close()

	rotated, err := filepath.Glob(filepath.Join(dir, "conversions.log.*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rotated) != 2 {
		t.Errorf("expected 2 rotated files, got %v", rotated)
	}

	f, err := os.Open(filepath.Join(dir, "conversions.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		var info ConversionInfo
		if err := json.Unmarshal(scanner.Bytes(), &info); err != nil {
			t.Errorf("invalid record %q: %v", scanner.Text(), err)
		}
		lines++
	}
	if lines != 1 {
		t.Errorf("expected the current log to hold one record, got %d", lines)
	}
}

func TestRecord(t *testing.T) {
	info := &ConversionInfo{
		Product: "record_test",
		Channels: []*ChannelInfo{
			{Channel: "red", Status: StatusConverted, NoDataPixels: 3},
			{Channel: "blue", Status: StatusSkipped},
		},
	}
	Record(info)

	if info.Status != StatusConverted {
		t.Errorf("expected %s, got %s", StatusConverted, info.Status)
	}
	if v := testutil.ToFloat64(granulesTotal.WithLabelValues("record_test", StatusConverted)); v != 1 {
		t.Errorf("converted granules counter %v", v)
	}
	if v := testutil.ToFloat64(channelsTotal.WithLabelValues("record_test", StatusSkipped)); v != 1 {
		t.Errorf("skipped channels counter %v", v)
	}
	if v := testutil.ToFloat64(noDataPixels.WithLabelValues("record_test")); v != 3 {
		t.Errorf("nodata pixel counter %v", v)
	}

	Record(&ConversionInfo{Product: "record_test", Status: StatusFailed, Error: "unreadable"})
	if v := testutil.ToFloat64(granulesTotal.WithLabelValues("record_test", StatusFailed)); v != 1 {
		t.Errorf("failed granules counter %v", v)
	}
}
