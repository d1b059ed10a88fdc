package archive

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func intPtr(v int) *int { return &v }

func TestParseTargets(t *testing.T) {
	cases := []struct {
		name       string
		partitions string
		want       []Target
		wantErr    bool
	}{
		{
			name:       "single",
			partitions: "h1:/etc",
			want:       []Target{{Host: "h1", Path: "/etc"}},
		},
		{
			name:       "ordered pair",
			partitions: "h1:/etc,h2:/var/lib",
			want: []Target{
				{Host: "h1", Path: "/etc"},
				{Host: "h2", Path: "/var/lib"},
			},
		},
		{
			name:       "whitespace tolerated",
			partitions: " h1:/etc , h2:/home ",
			want: []Target{
				{Host: "h1", Path: "/etc"},
				{Host: "h2", Path: "/home"},
			},
		},
		{
			name:       "empty",
			partitions: "",
			wantErr:    true,
		},
		{
			name:       "missing path",
			partitions: "h1",
			wantErr:    true,
		},
		{
			name:       "relative path",
			partitions: "h1:etc",
			wantErr:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTargets(tc.partitions)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d targets, got %d", len(tc.want), len(got))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("target %d: expected %v, got %v", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestWorkerMap_Resolve(t *testing.T) {
	w := WorkerMap{
		Default: WorkerPaths{ScriptDir: "/opt/backup/bin", LibPath: "/opt/backup/lib"},
		Hosts: map[string]WorkerPaths{
			"h2": {ScriptDir: "/usr/local/backup", LibPath: "/usr/local/lib"},
		},
	}

	if got := w.Resolve("h2").ScriptDir; got != "/usr/local/backup" {
		t.Fatalf("override not applied: %s", got)
	}
	if got := w.Resolve("h1").ScriptDir; got != "/opt/backup/bin" {
		t.Fatalf("fallback not applied: %s", got)
	}
}

func TestSchedule_Rule(t *testing.T) {
	s := Schedule{Mon: RuleDaily, Sun: RuleMonthly}

	if got := s.Rule(time.Monday); got != RuleDaily {
		t.Fatalf("Mon: expected daily, got %s", got)
	}
	if got := s.Rule(time.Sunday); got != RuleMonthly {
		t.Fatalf("Sun: expected monthly, got %s", got)
	}
	if got := s.Rule(time.Tuesday); got != RuleNone {
		t.Fatalf("unset day: expected none, got %s", got)
	}
	if !s.HasMonthly() {
		t.Fatalf("expected HasMonthly")
	}
	if (Schedule{Mon: RuleDaily}).HasMonthly() {
		t.Fatalf("expected no monthly")
	}
}

func TestSetCounters_GetSet(t *testing.T) {
	var c SetCounters

	if _, ok := c.Get(RuleDaily); ok {
		t.Fatalf("expected unset counter")
	}
	c.Set(RuleDaily, 2)
	if v, ok := c.Get(RuleDaily); !ok || v != 2 {
		t.Fatalf("expected 2, got %d ok=%v", v, ok)
	}
	if _, ok := c.Get(RuleWeekly); ok {
		t.Fatalf("weekly should remain unset")
	}
}

func TestRecord_YAMLRoundTrip(t *testing.T) {
	doc := `meta:
  name: prod
  description: production hosts
manager:
  managerHost: backup.example.com
  managerUser: backup
  managerPort: 22
targets:
  partitions: h1:/etc,h2:/var/lib
worker:
  default:
    scriptDir: /opt/backup/bin
    tclLibPath: /opt/backup/lib
  h2:
    scriptDir: /usr/local/backup
    tclLibPath: /usr/local/lib
schedule:
  Mon: daily
  Tue: daily
  Wed: daily
  Thu: daily
  Fri: weekly
  Sat: none
  Sun: monthly
storage:
  logDir: /var/log/backup
  remoteDevice: /dev/nst0
  listFileDir: /var/lib/backup
  dailySets: 3
  weeklySets: 2
  monthlySets: 2
notifications:
  adminUser: ops@example.com
  notifyTape: /usr/local/bin/tape_ready
  notifyTar: /usr/local/bin/tar_started
  notifyError: /usr/local/bin/backup_error
state:
  currentRule: daily
  archiveDate: 2025-09-10 01:30:00
  status: ok
  command: ""
  currentSet:
    daily: 1
`

	var rec Record
	if err := yaml.Unmarshal([]byte(doc), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if rec.Meta.Name != "prod" {
		t.Fatalf("unexpected name %q", rec.Meta.Name)
	}
	if len(rec.Targets) != 2 || rec.Targets[1].Host != "h2" {
		t.Fatalf("unexpected targets %v", rec.Targets)
	}
	if rec.Worker.Resolve("h2").ScriptDir != "/usr/local/backup" {
		t.Fatalf("worker override lost")
	}
	if v, ok := rec.State.CurrentSet.Get(RuleDaily); !ok || v != 1 {
		t.Fatalf("daily counter: got %d ok=%v", v, ok)
	}
	if _, ok := rec.State.CurrentSet.Get(RuleMonthly); ok {
		t.Fatalf("monthly counter should be unset")
	}

	out, err := yaml.Marshal(&rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Record
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if back.Meta != rec.Meta || back.Storage != rec.Storage {
		t.Fatalf("round trip drift: %+v vs %+v", back, rec)
	}
	if len(back.Targets) != 2 || back.Targets[0] != rec.Targets[0] {
		t.Fatalf("targets drift: %v", back.Targets)
	}
	if !strings.Contains(string(out), "partitions: h1:/etc,h2:/var/lib") {
		t.Fatalf("partitions wire form lost:\n%s", out)
	}
	if v, ok := back.State.CurrentSet.Get(RuleDaily); !ok || v != 1 {
		t.Fatalf("counter drift: %d ok=%v", v, ok)
	}
}

func TestRecord_Clone(t *testing.T) {
	rec := &Record{
		Meta:    Meta{Name: "prod"},
		Targets: Targets{{Host: "h1", Path: "/etc"}},
		Worker: WorkerMap{
			Default: WorkerPaths{ScriptDir: "/opt"},
			Hosts:   map[string]WorkerPaths{"h1": {ScriptDir: "/x"}},
		},
		State: State{CurrentSet: SetCounters{Daily: intPtr(1)}},
	}

	clone := rec.Clone()
	clone.State.CurrentSet.Set(RuleDaily, 9)
	clone.Targets[0].Host = "other"
	clone.Worker.Hosts["h1"] = WorkerPaths{ScriptDir: "/y"}

	if v, _ := rec.State.CurrentSet.Get(RuleDaily); v != 1 {
		t.Fatalf("clone mutated original counter: %d", v)
	}
	if rec.Targets[0].Host != "h1" {
		t.Fatalf("clone mutated original targets")
	}
	if rec.Worker.Hosts["h1"].ScriptDir != "/x" {
		t.Fatalf("clone mutated original worker map")
	}
}

func TestState_ArchiveTime(t *testing.T) {
	var s State
	if _, ok := s.ArchiveTime(); ok {
		t.Fatalf("expected unset archive time")
	}

	now := time.Date(2025, 9, 14, 1, 30, 0, 0, time.Local)
	s.SetArchiveTime(now)
	got, ok := s.ArchiveTime()
	if !ok || !got.Equal(now) {
		t.Fatalf("expected %v, got %v ok=%v", now, got, ok)
	}
}

func TestRecord_Validate(t *testing.T) {
	valid := func() *Record {
		return &Record{
			Meta:    Meta{Name: "prod"},
			Manager: Manager{Host: "mgr", User: "backup", Port: 22},
			Targets: Targets{{Host: "h1", Path: "/etc"}},
			Worker:  WorkerMap{Default: WorkerPaths{ScriptDir: "/opt/bin", LibPath: "/opt/lib"}},
			Schedule: Schedule{
				Mon: RuleDaily, Tue: RuleDaily, Wed: RuleDaily,
				Thu: RuleDaily, Fri: RuleWeekly, Sat: RuleNone, Sun: RuleMonthly,
			},
			Storage: Storage{
				LogDir: "/var/log/backup", RemoteDevice: "/dev/nst0", ListFileDir: "/var/lib/backup",
				DailySets: 3, WeeklySets: 2, MonthlySets: 2,
			},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *Record) {}},
		{name: "name with slash", mutate: func(r *Record) { r.Meta.Name = "a/b" }, wantErr: true},
		{name: "no targets", mutate: func(r *Record) { r.Targets = nil }, wantErr: true},
		{name: "monthly without sets", mutate: func(r *Record) { r.Storage.MonthlySets = 0 }, wantErr: true},
		{name: "counter out of range", mutate: func(r *Record) { r.State.CurrentSet.Set(RuleDaily, 3) }, wantErr: true},
		{name: "bad status", mutate: func(r *Record) { r.State.Status = "meh" }, wantErr: true},
		{name: "missing script dir", mutate: func(r *Record) { r.Worker.Default.ScriptDir = "" }, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := valid()
			tc.mutate(rec)
			err := rec.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
