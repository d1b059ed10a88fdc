package label

import (
	"strings"
	"testing"
	"time"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
)

func TestBuild(t *testing.T) {
	date := time.Date(2025, 9, 14, 1, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		archive string
		host    string
		path    string
		rule    archive.Rule
		maxLen  int
		want    string
	}{
		{
			name:    "short path kept verbatim",
			archive: "prod",
			host:    "h1",
			path:    "/etc",
			rule:    archive.RuleDaily,
			want:    "prod::h1:/etc-daily-09.14.2025",
		},
		{
			name:    "weekly tier",
			archive: "prod",
			host:    "h1",
			path:    "/var/lib",
			rule:    archive.RuleWeekly,
			want:    "prod::h1:/var/lib-weekly-09.14.2025",
		},
		{
			name:    "long path collapses to last segment",
			archive: "prod",
			host:    "h1",
			path:    "/srv/exports/research/projects/neuroimaging/subjects/session-archive",
			rule:    archive.RuleMonthly,
			want:    "prod::h1:session-archive-monthly-09.14.2025",
		},
		{
			name:    "custom max length",
			archive: "prod",
			host:    "h1",
			path:    "/var/spool/mail",
			rule:    archive.RuleDaily,
			maxLen:  20,
			want:    "prod::h1:mail-daily-09.14.2025",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Build(tc.archive, tc.host, tc.path, tc.rule, date, tc.maxLen)
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestBuild_DefaultBound(t *testing.T) {
	date := time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC)
	longPath := "/" + strings.Repeat("d/", 60) + "leaf"

	got := Build("prod", "h1", longPath, archive.RuleDaily, date, 0)
	if strings.Contains(got, "/d/") {
		t.Fatalf("long path not collapsed: %q", got)
	}
	if !strings.HasSuffix(got, "-daily-09.14.2025") {
		t.Fatalf("suffix lost: %q", got)
	}
}
