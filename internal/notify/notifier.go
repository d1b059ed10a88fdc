// Package notify delivers run events to operators: the per-archive
// command hooks, the tomorrow-volume email, and an optional Slack
// mirror of archive outcomes.
package notify

import (
	"context"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/outcome"
)

// Tomorrow summarises the next run for the operator email.
type Tomorrow struct {
	Rule     archive.Rule
	SetIndex int
	IncReset bool
	Date     string
}

// Notifier receives the executor's lifecycle events.
type Notifier interface {
	// Preflight fires the notifyTape hook before an archive's first
	// target.
	Preflight(ctx context.Context, rec *archive.Record)
	// OnArchiveStart fires the notifyTar hook before one target streams.
	OnArchiveStart(ctx context.Context, rec *archive.Record, target archive.Target)
	// OnArchiveError fires the notifyError hook with the operator block.
	OnArchiveError(ctx context.Context, rec *archive.Record, oerr *outcome.Error)
	// NotifyTomorrow mails the operator tomorrow's expected rule and
	// volume.
	NotifyTomorrow(ctx context.Context, rec *archive.Record, tomorrow Tomorrow) error
	// OnArchiveComplete reports the finished archive (success or not).
	OnArchiveComplete(ctx context.Context, result outcome.ArchiveResult)
}
