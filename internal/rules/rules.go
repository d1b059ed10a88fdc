// Package rules decides, for one archive on one day, which incremental
// tier runs and whether the incremental chain needs a fresh base.
package rules

import (
	"time"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
)

// firstWeekLastDay bounds the window in which a monthly run is allowed.
const firstWeekLastDay = 7

// Day is the calendar input to a run, resolved once by the dispatcher so
// every archive in a sweep sees the same notion of today.
type Day struct {
	Now     time.Time
	Weekday time.Weekday
	Forced  *archive.Rule
}

// Today builds a Day from a wall-clock time.
func Today(now time.Time) Day {
	return Day{Now: now, Weekday: now.Weekday()}
}

// WithWeekday overrides the day-of-week used for schedule resolution.
func (d Day) WithWeekday(day time.Weekday) Day {
	d.Weekday = day
	return d
}

// WithForcedRule overrides whatever the schedule says.
func (d Day) WithForcedRule(r archive.Rule) Day {
	d.Forced = &r
	return d
}

// Resolve returns the rule to execute for the record today. A forced
// rule wins over the schedule.
func Resolve(rec *archive.Record, day Day) archive.Rule {
	if day.Forced != nil {
		return *day.Forced
	}
	return rec.Schedule.Rule(day.Weekday)
}

// CanDoMonthly restricts monthly runs to the first week of the month.
func CanDoMonthly(dayOfMonth int) bool {
	return dayOfMonth >= 1 && dayOfMonth <= firstWeekLastDay
}

// IncrementalReset reports whether the archive needs its incremental
// base re-seeded: archives whose schedule never runs a monthly tier get
// a fresh base at every month boundary instead.
func IncrementalReset(rec *archive.Record, date time.Time) bool {
	if rec.Schedule.HasMonthly() {
		return false
	}
	last, ok := rec.State.ArchiveTime()
	if !ok {
		return true
	}
	return last.Month() != date.Month() || last.Year() != date.Year()
}
