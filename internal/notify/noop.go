package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/outcome"
)

// NoopNotifier drops every event.
type NoopNotifier struct{}

// NewNoop logs the reason once and returns a silent notifier.
func NewNoop(logger zerolog.Logger, reason string) *NoopNotifier {
	if reason != "" {
		logger.Info().Msg(reason)
	}
	return &NoopNotifier{}
}

func (*NoopNotifier) Preflight(context.Context, *archive.Record) {}

func (*NoopNotifier) OnArchiveStart(context.Context, *archive.Record, archive.Target) {}

func (*NoopNotifier) OnArchiveError(context.Context, *archive.Record, *outcome.Error) {}

func (*NoopNotifier) NotifyTomorrow(context.Context, *archive.Record, Tomorrow) error { return nil }

func (*NoopNotifier) OnArchiveComplete(context.Context, outcome.ArchiveResult) {}
