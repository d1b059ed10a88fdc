package notify

import (
	"context"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/outcome"
)

// Self names the manager in operator-facing messages.
const Self = "backupmgr"

// HookNotifier runs the record's notification commands on the manager
// host. Hooks are operator-authored command strings; failures are
// logged and never fail the archive.
type HookNotifier struct {
	logger zerolog.Logger
	run    func(ctx context.Context, command string, stdin string) error
	mailer *Mailer
}

// NewHookNotifier builds the hook runner; mailer may be nil when no
// relay is configured.
func NewHookNotifier(logger zerolog.Logger, mailer *Mailer) *HookNotifier {
	return &HookNotifier{
		logger: logger,
		mailer: mailer,
		run: func(ctx context.Context, command string, stdin string) error {
			cmd := exec.CommandContext(ctx, "sh", "-c", command)
			if stdin != "" {
				cmd.Stdin = strings.NewReader(stdin)
			}
			return cmd.Run()
		},
	}
}

// Preflight implements Notifier.
func (n *HookNotifier) Preflight(ctx context.Context, rec *archive.Record) {
	n.fire(ctx, rec.Meta.Name, "notifyTape", rec.Notifications.NotifyTape, "")
}

// OnArchiveStart implements Notifier.
func (n *HookNotifier) OnArchiveStart(ctx context.Context, rec *archive.Record, target archive.Target) {
	n.fire(ctx, rec.Meta.Name, "notifyTar", rec.Notifications.NotifyTar, target.String())
}

// OnArchiveError implements Notifier.
func (n *HookNotifier) OnArchiveError(ctx context.Context, rec *archive.Record, oerr *outcome.Error) {
	n.fire(ctx, rec.Meta.Name, "notifyError", rec.Notifications.NotifyError, oerr.OperatorBlock(Self))
}

// NotifyTomorrow implements Notifier via the mailer.
func (n *HookNotifier) NotifyTomorrow(ctx context.Context, rec *archive.Record, tomorrow Tomorrow) error {
	if n.mailer == nil {
		n.logger.Debug().Str("archive", rec.Meta.Name).Msg("no mail relay configured; tomorrow notice skipped")
		return nil
	}
	return n.mailer.SendTomorrow(ctx, rec, tomorrow)
}

// OnArchiveComplete implements Notifier. The hook notifier has no
// completion channel; Slack covers it when configured.
func (n *HookNotifier) OnArchiveComplete(context.Context, outcome.ArchiveResult) {}

func (n *HookNotifier) fire(ctx context.Context, name, hook, command, stdin string) {
	if strings.TrimSpace(command) == "" {
		return
	}
	if err := n.run(ctx, command, stdin); err != nil {
		n.logger.Warn().
			Str("archive", name).
			Str("hook", hook).
			Err(err).
			Msg("notification hook failed")
		return
	}
	n.logger.Debug().Str("archive", name).Str("hook", hook).Msg("notification hook fired")
}
