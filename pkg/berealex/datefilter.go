package berealex

import (
	"strings"
	"time"
)

var timespanFormat = "02.01.2006"

// DateFilter decides whether a local capture time falls within the requested
// range. A nil *DateFilter includes everything.
type DateFilter struct {
	start time.Time // zero means open start
	end   time.Time // exclusive; zero means open end
}

// NewDateFilter parses the --timespan/--year selection. Exactly one of the
// two may be given; both set is a configuration error. Empty timespan and
// zero year yield a nil filter.
func NewDateFilter(timespan string, year int) (*DateFilter, error) {
	if timespan != "" && year != 0 {
		return nil, configErrorf("--timespan and --year are mutually exclusive")
	}

	if year != 0 {
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return &DateFilter{start: start, end: start.AddDate(1, 0, 0)}, nil
	}

	if timespan == "" {
		return nil, nil
	}

	startStr, endStr, ok := strings.Cut(strings.TrimSpace(timespan), "-")
	if !ok {
		return nil, configErrorf("timespan %q: want 'DD.MM.YYYY-DD.MM.YYYY' ('*' as wildcard)", timespan)
	}

	f := &DateFilter{}
	if startStr != "*" {
		start, err := time.Parse(timespanFormat, startStr)
		if err != nil {
			return nil, configErrorf("timespan start %q: %v", startStr, err)
		}
		f.start = start
	}
	if endStr != "*" {
		end, err := time.Parse(timespanFormat, endStr)
		if err != nil {
			return nil, configErrorf("timespan end %q: %v", endStr, err)
		}
		// the end day is included in full
		f.end = end.AddDate(0, 0, 1)
	}
	if !f.start.IsZero() && !f.end.IsZero() && f.end.Before(f.start) {
		return nil, configErrorf("timespan %q: end before start", timespan)
	}
	return f, nil
}

// Include reports whether t is inside the filter's range. Comparison is by
// wall clock: the zone t carries is ignored so that a record's resolved local
// time is matched against the plain dates the user typed.
func (f *DateFilter) Include(t time.Time) bool {
	if f == nil {
		return true
	}
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	if !f.start.IsZero() && wall.Before(f.start) {
		return false
	}
	if !f.end.IsZero() && !wall.Before(f.end) {
		return false
	}
	return true
}
