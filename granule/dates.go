package granule

import (
	"sort"
	"time"
)

// DateRange summarises the days covered by a set of granules.
type DateRange struct {
	Min         time.Time   `json:"min"`
	Max         time.Time   `json:"max"`
	Unavailable []time.Time `json:"unavailable"`
}

// NewDateRange returns the earliest and latest times and every day between
// them with no granule. Days are compared in UTC.
func NewDateRange(available []time.Time) (DateRange, bool) {
	var r DateRange
	if len(available) == 0 {
		return r, false
	}

	days := make(map[time.Time]bool, len(available))
	r.Min, r.Max = available[0], available[0]
	for _, t := range available {
		if t.Before(r.Min) {
			r.Min = t
		}
		if t.After(r.Max) {
			r.Max = t
		}
		days[truncateDay(t)] = true
	}

	for d := truncateDay(r.Min); d.Before(truncateDay(r.Max)); d = d.AddDate(0, 0, 1) {
		if !days[d] {
			r.Unavailable = append(r.Unavailable, d)
		}
	}
	sort.Slice(r.Unavailable, func(i, j int) bool { return r.Unavailable[i].Before(r.Unavailable[j]) })
	return r, true
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
