// Package outcome models the failure taxonomy: per-target, per-archive
// and per-run results, and the standardized operator-facing error block.
package outcome

import (
	"fmt"
	"time"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
)

// Kind classifies an error per the taxonomy.
type Kind string

const (
	KindCLIArgs      Kind = "cliArgs"
	KindDirNotFound  Kind = "dirNotFound"
	KindConfigLoad   Kind = "configLoad"
	KindPingHost     Kind = "pingHost"
	KindTransport    Kind = "transport"
	KindParseResults Kind = "parseResults"
	KindWorkerKilled Kind = "workerKilled"
	KindStateSave    Kind = "stateSave"
	KindRunAggregate Kind = "runAggregate"
)

// Severity separates warn-level target skips from fatal failures.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityFatal Severity = "fatal"
)

// Severity returns the policy level for a kind.
func (k Kind) Severity() Severity {
	switch k {
	case KindPingHost, KindConfigLoad:
		return SeverityWarn
	}
	return SeverityFatal
}

// Error is a classified failure with operator-facing context.
type Error struct {
	Kind    Kind
	Context string
	Message string
	Detail  string
	When    time.Time
	Err     error
}

// NewError builds a classified error stamped with the current time.
func NewError(kind Kind, context, message, detail string) *Error {
	return &Error{Kind: kind, Context: context, Message: message, Detail: detail, When: time.Now()}
}

// Wrap attaches an underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	if e.Detail == "" && err != nil {
		e.Detail = err.Error()
	}
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: while %s, %s", e.Kind, e.Context, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// OperatorBlock renders the standardized failure block shown to
// operators and mailed by the error hook.
func (e *Error) OperatorBlock(self string) string {
	return fmt.Sprintf("%s ERROR\nwhile %s, %s\nspecific: %s\nat %s\n",
		self, e.Context, e.Message, e.Detail, e.When.Format(time.ANSIC))
}

// TargetResult is the outcome of one host:path partition.
type TargetResult struct {
	Target       archive.Target
	Label        string
	BytesWritten int64
	Err          *Error
}

// OK reports whether the target streamed successfully.
func (t TargetResult) OK() bool { return t.Err == nil }

// ArchiveResult is the outcome of one archive's run.
type ArchiveResult struct {
	Name     string
	Rule     archive.Rule
	SetIndex int
	Skipped  bool
	Status   archive.Status
	Targets  []TargetResult
	Err      *Error
	Started  time.Time
	Finished time.Time
}

// OK is true when the archive either ran fully clean or had nothing to
// do today.
func (a ArchiveResult) OK() bool {
	return a.Skipped || a.Status == archive.StatusOK
}

// FailedTargets counts partitions that did not complete.
func (a ArchiveResult) FailedTargets() int {
	n := 0
	for _, t := range a.Targets {
		if !t.OK() {
			n++
		}
	}
	return n
}

// TotalBytes sums the bytes reported by successful targets.
func (a ArchiveResult) TotalBytes() int64 {
	var total int64
	for _, t := range a.Targets {
		total += t.BytesWritten
	}
	return total
}

// RunResult aggregates one manager sweep.
type RunResult struct {
	RunID    string
	Archives []ArchiveResult
	Skipped  []string
}

// Failed reports whether any archive failed; load-skipped documents do
// not fail the run.
func (r RunResult) Failed() bool {
	for _, a := range r.Archives {
		if !a.OK() {
			return true
		}
	}
	return false
}

// Exit codes of the manager process.
const (
	ExitOK           = 0
	ExitCLIArgs      = 1
	ExitConfigDir    = 2
	ExitDocLoad      = 3
	ExitStateSave    = 4
	ExitBackupFailed = 5
)

// ExitError carries a process exit code through the CLI layer.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }
