// Package scheduler runs the daily job table on Eastern Time wall-clock
// triggers. Expressions are standard 5-field cron evaluated in the ET
// location, so jobs ride through DST transitions with the sports calendar.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression: minute, hour, day-of-month,
// month, day-of-week (0=Sunday). Supported syntax: "*", single values,
// "a,b,c" lists, "a-b" ranges and "*/n" steps.
type Schedule struct {
	minute, hour, dom, month, dow map[int]bool
	raw                           string
}

type cronField struct {
	name     string
	min, max int
}

var cronFields = []cronField{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// ParseSchedule parses a 5-field cron expression.
func ParseSchedule(expr string) (*Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(cronFields) {
		return nil, fmt.Errorf("cron %q: want 5 fields, got %d", expr, len(parts))
	}
	sets := make([]map[int]bool, len(cronFields))
	for i, part := range parts {
		set, err := parseCronField(part, cronFields[i])
		if err != nil {
			return nil, fmt.Errorf("cron %q: %w", expr, err)
		}
		sets[i] = set
	}
	return &Schedule{
		minute: sets[0], hour: sets[1], dom: sets[2], month: sets[3], dow: sets[4],
		raw: expr,
	}, nil
}

func parseCronField(part string, f cronField) (map[int]bool, error) {
	set := make(map[int]bool)
	for _, piece := range strings.Split(part, ",") {
		lo, hi, step := f.min, f.max, 1

		if idx := strings.Index(piece, "/"); idx >= 0 {
			n, err := strconv.Atoi(piece[idx+1:])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%s: bad step %q", f.name, piece)
			}
			step = n
			piece = piece[:idx]
		}

		switch {
		case piece == "*":
			// full range
		case strings.Contains(piece, "-"):
			bounds := strings.SplitN(piece, "-", 2)
			a, errA := strconv.Atoi(bounds[0])
			b, errB := strconv.Atoi(bounds[1])
			if errA != nil || errB != nil || a > b {
				return nil, fmt.Errorf("%s: bad range %q", f.name, piece)
			}
			lo, hi = a, b
		default:
			v, err := strconv.Atoi(piece)
			if err != nil {
				return nil, fmt.Errorf("%s: bad value %q", f.name, piece)
			}
			lo, hi = v, v
		}

		if lo < f.min || hi > f.max {
			return nil, fmt.Errorf("%s: %d-%d outside [%d,%d]", f.name, lo, hi, f.min, f.max)
		}
		for v := lo; v <= hi; v += step {
			set[v] = true
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%s: empty set", f.name)
	}
	return set, nil
}

// String returns the original expression.
func (s *Schedule) String() string { return s.raw }

// Matches reports whether the instant (already in ET) satisfies the
// expression. When both dom and dow are restricted they AND; classic
// cron's OR quirk is not wanted for a fixed job table.
func (s *Schedule) Matches(t time.Time) bool {
	return s.minute[t.Minute()] &&
		s.hour[t.Hour()] &&
		s.dom[t.Day()] &&
		s.month[int(t.Month())] &&
		s.dow[int(t.Weekday())]
}

// Next returns the first matching instant strictly after t, in t's location.
// Scanning minute-by-minute is plenty for a table that fires a handful of
// times a day; the horizon guards against impossible expressions.
func (s *Schedule) Next(t time.Time) time.Time {
	cur := t.Truncate(time.Minute).Add(time.Minute)
	horizon := t.AddDate(0, 2, 0)
	for cur.Before(horizon) {
		if s.Matches(cur) {
			return cur
		}
		cur = cur.Add(time.Minute)
	}
	return time.Time{}
}
