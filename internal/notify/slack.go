package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/outcome"
)

// SlackNotifier mirrors archive outcomes to a Slack webhook. It only
// implements the completion event; the command hooks and operator mail
// stay with the HookNotifier.
type SlackNotifier struct {
	logger zerolog.Logger
	poster *poster
}

// NewSlackNotifier returns a Slack notifier, or a noop when the
// webhook is not configured.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; outcome mirror disabled")
	}
	return &SlackNotifier{
		logger: logger,
		poster: newPoster(logger, "slack", webhookURL, defaultPosterTiming),
	}
}

// Preflight implements Notifier.
func (n *SlackNotifier) Preflight(context.Context, *archive.Record) {}

// OnArchiveStart implements Notifier.
func (n *SlackNotifier) OnArchiveStart(context.Context, *archive.Record, archive.Target) {}

// OnArchiveError implements Notifier.
func (n *SlackNotifier) OnArchiveError(context.Context, *archive.Record, *outcome.Error) {}

// NotifyTomorrow implements Notifier.
func (n *SlackNotifier) NotifyTomorrow(context.Context, *archive.Record, Tomorrow) error {
	return nil
}

// OnArchiveComplete implements Notifier.
func (n *SlackNotifier) OnArchiveComplete(ctx context.Context, result outcome.ArchiveResult) {
	if result.Skipped {
		return
	}
	payload, err := json.Marshal(buildSlackMessage(result))
	if err != nil {
		n.logger.Error().Err(err).Msg("marshal slack payload")
		return
	}
	if err := n.poster.post(ctx, payload); err != nil {
		n.logger.Warn().
			Str("archive", result.Name).
			Err(err).
			Msg("slack outcome delivery failed")
		return
	}
	n.logger.Debug().Str("archive", result.Name).Msg("slack outcome sent")
}

func buildSlackMessage(result outcome.ArchiveResult) slack.WebhookMessage {
	verdict := "completed"
	if !result.OK() {
		verdict = "FAILED"
	}
	summary := fmt.Sprintf("Backup %s: %s %s (set %d)", result.Name, string(result.Rule), verdict, result.SetIndex)

	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))
	blocks := []slack.Block{header}

	for _, target := range result.Targets {
		var line string
		if target.OK() {
			line = fmt.Sprintf(":white_check_mark: `%s` — %d bytes", target.Target, target.BytesWritten)
		} else {
			line = fmt.Sprintf(":x: `%s` — %s", target.Target, target.Err.Message)
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", line, false, false), nil, nil))
	}

	duration := result.Finished.Sub(result.Started).Round(time.Second)
	footer := slack.NewContextBlock("", slack.NewTextBlockObject("mrkdwn",
		fmt.Sprintf("%d/%d targets, %d bytes, %s",
			len(result.Targets)-result.FailedTargets(), len(result.Targets),
			result.TotalBytes(), duration), false, false))
	blocks = append(blocks, footer)

	blockSet := slack.Blocks{BlockSet: blocks}
	return slack.WebhookMessage{Text: summary, Blocks: &blockSet}
}
