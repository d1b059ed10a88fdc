package executor

import (
	"testing"

	"github.com/rudolphpienaar/backupmgr/internal/outcome"
)

func TestParseResults(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		wantBytes int64
		wantKind  outcome.Kind
	}{
		{
			name:      "bytes token two positions before count",
			raw:       "Total bytes written: 1048576 (1.0MiB, 12MiB/s)",
			wantBytes: 1048576,
		},
		{
			name:      "token stream with noise",
			raw:       "file list sent\nstats: bytes written 12345 elapsed 42s\ndone",
			wantBytes: 12345,
		},
		{
			name:     "no bytes token",
			raw:      "archiver finished without counters",
			wantKind: outcome.KindParseResults,
		},
		{
			name:     "bytes token truncated",
			raw:      "short output bytes written",
			wantKind: outcome.KindParseResults,
		},
		{
			name:     "bytes value not numeric",
			raw:      "bytes written lots",
			wantKind: outcome.KindParseResults,
		},
		{
			name:     "killed token is fatal",
			raw:      "tar: killed: signal 15 bytes written 99",
			wantKind: outcome.KindWorkerKilled,
		},
		{
			name:     "empty output",
			raw:      "",
			wantKind: outcome.KindParseResults,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseResults(tc.raw, "archiving h1:/etc")
			if tc.wantKind != "" {
				if err == nil {
					t.Fatalf("expected %s error, got %d bytes", tc.wantKind, got)
				}
				if err.Kind != tc.wantKind {
					t.Fatalf("expected %s, got %s", tc.wantKind, err.Kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tc.wantBytes {
				t.Fatalf("expected %d, got %d", tc.wantBytes, got)
			}
		})
	}
}
