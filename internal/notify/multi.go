package notify

import (
	"context"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/outcome"
)

// MultiNotifier fans each event out to every configured notifier.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier drops nil entries and wraps the rest.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	filtered := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		filtered = append(filtered, n)
	}
	return &MultiNotifier{notifiers: filtered}
}

// Preflight implements Notifier.
func (m *MultiNotifier) Preflight(ctx context.Context, rec *archive.Record) {
	for _, n := range m.notifiers {
		n.Preflight(ctx, rec)
	}
}

// OnArchiveStart implements Notifier.
func (m *MultiNotifier) OnArchiveStart(ctx context.Context, rec *archive.Record, target archive.Target) {
	for _, n := range m.notifiers {
		n.OnArchiveStart(ctx, rec, target)
	}
}

// OnArchiveError implements Notifier.
func (m *MultiNotifier) OnArchiveError(ctx context.Context, rec *archive.Record, oerr *outcome.Error) {
	for _, n := range m.notifiers {
		n.OnArchiveError(ctx, rec, oerr)
	}
}

// NotifyTomorrow implements Notifier; the first error wins but every
// notifier still runs.
func (m *MultiNotifier) NotifyTomorrow(ctx context.Context, rec *archive.Record, tomorrow Tomorrow) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.NotifyTomorrow(ctx, rec, tomorrow); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OnArchiveComplete implements Notifier.
func (m *MultiNotifier) OnArchiveComplete(ctx context.Context, result outcome.ArchiveResult) {
	for _, n := range m.notifiers {
		n.OnArchiveComplete(ctx, result)
	}
}
