package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_CollectAndServe(t *testing.T) {
	m := New()
	m.ObserveRunDuration(90 * time.Second)
	m.IncArchive("daily", "ok")
	m.IncArchive("daily", "failed")
	m.IncTarget("prod", "ok")
	m.AddBytesWritten("prod", 12345)
	m.SetLastSuccessfulRun(time.Date(2025, 9, 14, 2, 0, 0, 0, time.UTC))

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := recorder.Body.String()
	for _, want := range []string{
		`backupmgr_archives_total{rule="daily",status="ok"} 1`,
		`backupmgr_archives_total{rule="daily",status="failed"} 1`,
		`backupmgr_targets_total{archive="prod",status="ok"} 1`,
		`backupmgr_bytes_written_total{archive="prod"} 12345`,
		"backupmgr_run_duration_seconds",
		"backupmgr_last_successful_run_timestamp",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestMetrics_NilReceiverSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRunDuration(time.Second)
	m.IncArchive("daily", "ok")
	m.IncTarget("prod", "ok")
	m.AddBytesWritten("prod", 1)
	m.SetLastSuccessfulRun(time.Now())
	if m.Handler() == nil {
		t.Fatalf("nil metrics must still serve a handler")
	}
}
