// Package timeutil owns every Eastern-Time calendar computation in the
// system. All storage is UTC; all consumer-facing rendering goes through the
// helpers here, so the ET day gate has exactly one definition.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

const etDateLayout = "2006-01-02"

var (
	etOnce sync.Once
	etLoc  *time.Location
)

// ETLocation returns the America/New_York location, loaded once. A host
// without tzdata is a deployment error worth panicking over at first use.
func ETLocation() *time.Location {
	etOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			panic(fmt.Sprintf("timeutil: load America/New_York: %v", err))
		}
		etLoc = loc
	})
	return etLoc
}

// DayWindow returns the half-open ET calendar-day window
// [00:00 ET on etDate, 00:00 ET on etDate+1) as UTC-comparable instants.
// AddDate keeps the window correct across DST transitions, where the day is
// 23 or 25 hours long.
func DayWindow(etDate string) (start, end time.Time, err error) {
	day, err := time.ParseInLocation(etDateLayout, etDate, ETLocation())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid ET date %q: %w", etDate, err)
	}
	return day, day.AddDate(0, 0, 1), nil
}

// InETDay reports whether instant t falls inside the ET calendar day.
func InETDay(t time.Time, etDate string) bool {
	start, end, err := DayWindow(etDate)
	if err != nil {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

// ETDateOf renders the ET calendar date of an instant as YYYY-MM-DD.
func ETDateOf(t time.Time) string {
	return t.In(ETLocation()).Format(etDateLayout)
}

// TodayET is the current ET calendar date.
func TodayET(now time.Time) string { return ETDateOf(now) }

// YesterdayET is the ET calendar date one day before now.
func YesterdayET(now time.Time) string {
	return ETDateOf(now.In(ETLocation()).AddDate(0, 0, -1))
}

// DisplayET renders an instant the way consumers see start times: "9:10 PM ET".
func DisplayET(t time.Time) string {
	return t.In(ETLocation()).Format("3:04 PM") + " ET"
}

// Snapshot is the DebugTime payload: every clock the pipeline reasons about,
// rendered once so operators can line up UTC storage against ET gating.
type Snapshot struct {
	NowUTC     string `json:"now_utc"`
	NowET      string `json:"now_et"`
	ETDate     string `json:"et_date"`
	ETDayStart string `json:"et_day_start"`
	ETDayEnd   string `json:"et_day_end"`
}

// Snap captures the debug snapshot for an instant.
func Snap(now time.Time) Snapshot {
	etDate := ETDateOf(now)
	start, end, _ := DayWindow(etDate)
	return Snapshot{
		NowUTC:     now.UTC().Format(time.RFC3339),
		NowET:      now.In(ETLocation()).Format(time.RFC3339),
		ETDate:     etDate,
		ETDayStart: start.Format(time.RFC3339),
		ETDayEnd:   end.Format(time.RFC3339),
	}
}
