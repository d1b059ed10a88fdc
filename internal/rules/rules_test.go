package rules

import (
	"testing"
	"time"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
)

func TestResolve(t *testing.T) {
	rec := &archive.Record{
		Schedule: archive.Schedule{Mon: archive.RuleDaily, Sun: archive.RuleMonthly},
	}

	cases := []struct {
		name string
		day  Day
		want archive.Rule
	}{
		{
			name: "scheduled daily",
			day:  Day{Weekday: time.Monday},
			want: archive.RuleDaily,
		},
		{
			name: "scheduled monthly",
			day:  Day{Weekday: time.Sunday},
			want: archive.RuleMonthly,
		},
		{
			name: "unset day is none",
			day:  Day{Weekday: time.Wednesday},
			want: archive.RuleNone,
		},
		{
			name: "forced rule wins",
			day:  Day{Weekday: time.Monday}.WithForcedRule(archive.RuleWeekly),
			want: archive.RuleWeekly,
		},
		{
			name: "forced none suppresses schedule",
			day:  Day{Weekday: time.Sunday}.WithForcedRule(archive.RuleNone),
			want: archive.RuleNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(rec, tc.day); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestCanDoMonthly(t *testing.T) {
	for day := 1; day <= 31; day++ {
		want := day <= 7
		if got := CanDoMonthly(day); got != want {
			t.Fatalf("day %d: expected %v, got %v", day, want, got)
		}
	}
}

func TestIncrementalReset(t *testing.T) {
	august := time.Date(2025, 8, 14, 2, 0, 0, 0, time.UTC)

	withSchedule := func(hasMonthly bool, archiveDate string) *archive.Record {
		rec := &archive.Record{
			Schedule: archive.Schedule{Mon: archive.RuleDaily, Fri: archive.RuleWeekly},
		}
		if hasMonthly {
			rec.Schedule.Sun = archive.RuleMonthly
		}
		rec.State.ArchiveDate = archiveDate
		return rec
	}

	cases := []struct {
		name string
		rec  *archive.Record
		date time.Time
		want bool
	}{
		{
			name: "monthly tier present never resets",
			rec:  withSchedule(true, ""),
			date: august,
			want: false,
		},
		{
			name: "no archive date resets",
			rec:  withSchedule(false, ""),
			date: august,
			want: true,
		},
		{
			name: "prior month resets",
			rec:  withSchedule(false, "2025-07-28 01:00:00"),
			date: august,
			want: true,
		},
		{
			name: "same month keeps chain",
			rec:  withSchedule(false, "2025-08-02 01:00:00"),
			date: august,
			want: false,
		},
		{
			name: "same month last year resets",
			rec:  withSchedule(false, "2024-08-02 01:00:00"),
			date: august,
			want: true,
		},
		{
			name: "unparseable date treated as absent",
			rec:  withSchedule(false, "last tuesday"),
			date: august,
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IncrementalReset(tc.rec, tc.date); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
