package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nci/swathgrid/granule"
)

// Memory is a process-local catalog used for dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[granule.Key]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[granule.Key]Entry)}
}

func (m *Memory) Exists(ctx context.Context, key granule.Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *Memory) Insert(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Key] = *e
	return nil
}

// Get returns the entry stored under key.
func (m *Memory) Get(key granule.Key) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

// Len is the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Dates(ctx context.Context, campaign, instrument string) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var dates []time.Time
	for k := range m.entries {
		if k.Campaign != campaign || k.Instrument != instrument || seen[k.Date] {
			continue
		}
		seen[k.Date] = true
		t, err := time.Parse(granule.DateLayout, k.Date)
		if err != nil {
			return nil, err
		}
		dates = append(dates, t)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (m *Memory) Close() error {
	return nil
}
