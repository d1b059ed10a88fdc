// Package executor runs one archive end to end: rule resolution, set
// selection, per-target streaming, log writing, state commit or
// rollback.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/label"
	"github.com/rudolphpienaar/backupmgr/internal/metrics"
	"github.com/rudolphpienaar/backupmgr/internal/notify"
	"github.com/rudolphpienaar/backupmgr/internal/outcome"
	"github.com/rudolphpienaar/backupmgr/internal/rotation"
	"github.com/rudolphpienaar/backupmgr/internal/rules"
	"github.com/rudolphpienaar/backupmgr/internal/sink"
	"github.com/rudolphpienaar/backupmgr/internal/transport"
	"github.com/rudolphpienaar/backupmgr/internal/worker"
)

// Persister commits or diverts a mutated record.
type Persister interface {
	SaveCanonical(rec *archive.Record) error
	SaveError(rec *archive.Record) error
}

// Executor drives one archive at a time. Targets are strictly
// sequential: the destination is a single-writer resource.
type Executor struct {
	logger        zerolog.Logger
	runner        transport.Runner
	pinger        transport.Pinger
	notifier      notify.Notifier
	persister     Persister
	metrics       *metrics.Metrics
	controllerFor func(destination string) sink.Controller
	clock         func() time.Time
	archiverBin   string
	receiver      string
}

// Option customizes executor construction.
type Option func(*Executor)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) { e.clock = clock }
}

// WithControllerFactory overrides tape controller construction.
func WithControllerFactory(factory func(destination string) sink.Controller) Option {
	return func(e *Executor) { e.controllerFor = factory }
}

// WithMetrics attaches run collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithArchiverBin overrides the archiver entry point name.
func WithArchiverBin(bin string) Option {
	return func(e *Executor) { e.archiverBin = bin }
}

// WithReceiver overrides the receiver-side reader command.
func WithReceiver(receiver string) Option {
	return func(e *Executor) { e.receiver = receiver }
}

// New constructs an Executor.
func New(logger zerolog.Logger, runner transport.Runner, pinger transport.Pinger,
	notifier notify.Notifier, persister Persister, opts ...Option) *Executor {
	e := &Executor{
		logger:    logger,
		runner:    runner,
		pinger:    pinger,
		notifier:  notifier,
		persister: persister,
		clock:     time.Now,
		receiver:  sink.DefaultReceiver,
		controllerFor: func(destination string) sink.Controller {
			return sink.NewController(logger, destination)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one archive for the given day and persists the result of
// any run that reaches its targets; a skipped day or a rule without a
// destination set persists nothing. The record is cloned first; the
// caller's copy stays pristine.
func (e *Executor) Run(ctx context.Context, original *archive.Record, day rules.Day) outcome.ArchiveResult {
	rec := original.Clone()
	logger := e.logger.With().Str("archive", rec.Meta.Name).Logger()

	rule := rules.Resolve(rec, day)
	rec.State.CurrentRule = rule

	result := outcome.ArchiveResult{
		Name:    rec.Meta.Name,
		Rule:    rule,
		Started: e.clock(),
	}

	switch rule {
	case archive.RuleNone:
		logger.Info().Msg("no rule scheduled today")
		result.Skipped = true
		result.Finished = e.clock()
		return result
	case archive.RuleMonthly:
		if day.Forced == nil && !rules.CanDoMonthly(day.Now.Day()) {
			logger.Info().
				Int("day_of_month", day.Now.Day()).
				Msg("monthly backup only runs in the first week; skipping")
			result.Skipped = true
			result.Finished = e.clock()
			return result
		}
	}

	setIndex, err := rotation.PeekNext(rec, rule)
	if err != nil {
		result.Err = outcome.NewError(outcome.KindConfigLoad, "selecting destination set", err.Error(), "").Wrap(err)
		result.Status = archive.StatusFailed
		result.Finished = e.clock()
		return result
	}
	result.SetIndex = setIndex

	incReset := rules.IncrementalReset(rec, day.Now)
	logger.Info().
		Str("rule", string(rule)).
		Int("set", setIndex).
		Bool("inc_reset", incReset).
		Int("targets", len(rec.Targets)).
		Msg("archive run starting")

	e.notifier.Preflight(ctx, rec)

	controller := e.controllerFor(rec.Storage.RemoteDevice)
	allOK := true
	for _, target := range rec.Targets {
		targetResult := e.runTarget(ctx, logger, rec, target, rule, setIndex, incReset, day.Now, controller)
		result.Targets = append(result.Targets, targetResult)
		if targetResult.OK() {
			rec.State.SetArchiveTime(e.clock())
			e.metrics.IncTarget(rec.Meta.Name, "ok")
			e.metrics.AddBytesWritten(rec.Meta.Name, targetResult.BytesWritten)
		} else {
			allOK = false
			e.metrics.IncTarget(rec.Meta.Name, string(targetResult.Err.Kind.Severity()))
		}
		if ctx.Err() != nil {
			allOK = false
			break
		}
	}

	if allOK {
		if _, err := rotation.Advance(rec, rule); err != nil {
			logger.Error().Err(err).Msg("set rotation failed")
			allOK = false
		}
	}

	if allOK {
		if sink.IsDevice(rec.Storage.RemoteDevice) {
			if err := controller.Offline(ctx); err != nil {
				logger.Warn().Err(err).Msg("offline verb failed")
			}
		}
		rec.State.Status = archive.StatusOK
		result.Status = archive.StatusOK
		e.sendTomorrow(ctx, logger, rec, day)
	} else {
		rec.State.Status = archive.StatusFailed
		result.Status = archive.StatusFailed
	}

	e.persist(logger, rec, &result)
	result.Finished = e.clock()
	e.metrics.IncArchive(string(rule), string(result.Status))
	e.notifier.OnArchiveComplete(ctx, result)

	logger.Info().
		Str("status", string(result.Status)).
		Int("failed_targets", result.FailedTargets()).
		Int64("bytes", result.TotalBytes()).
		Msg("archive run finished")
	return result
}

// runTarget streams one partition. Failures are recorded, never
// propagated: sibling targets still run.
func (e *Executor) runTarget(ctx context.Context, logger zerolog.Logger, rec *archive.Record,
	target archive.Target, rule archive.Rule, setIndex int, incReset bool,
	now time.Time, controller sink.Controller) outcome.TargetResult {

	targetCtx := fmt.Sprintf("archiving %s for %s", target, rec.Meta.Name)
	result := outcome.TargetResult{Target: target}

	if !e.pinger.Alive(ctx, target.Host) {
		result.Err = outcome.NewError(outcome.KindPingHost, targetCtx,
			"host did not answer 3 echo requests", target.Host)
		logger.Warn().Str("target", target.String()).Msg("target unreachable; skipping")
		return result
	}

	result.Label = label.Build(rec.Meta.Name, target.Host, target.Path, rule, now, label.DefaultMaxLen)
	device := sink.Resolve(rec.Storage.RemoteDevice, rec.Meta.Name, target.Host, target.Path, rule, now.Weekday())

	invocation := worker.Build(worker.Params{
		Record:      rec,
		Target:      target,
		Rule:        rule,
		Label:       result.Label,
		Device:      device,
		Receiver:    e.receiver,
		IncReset:    incReset,
		ArchiverBin: e.archiverBin,
	})
	rec.State.Command = invocation.Main.Render()

	if err := controller.Rewind(ctx); err != nil {
		result.Err = outcome.NewError(outcome.KindTransport, targetCtx,
			"rewind failed on the destination", "").Wrap(err)
		e.notifier.OnArchiveError(ctx, rec, result.Err)
		return result
	}

	e.notifier.OnArchiveStart(ctx, rec, target)

	for _, pre := range invocation.Pre {
		if res, err := e.runner.Run(ctx, target.Host, pre); err != nil || res.ExitCode != 0 {
			result.Err = outcome.NewError(outcome.KindTransport, targetCtx,
				"incremental state maintenance failed", res.Stderr).Wrap(err)
			e.notifier.OnArchiveError(ctx, rec, result.Err)
			return result
		}
	}

	res, err := e.runner.Run(ctx, target.Host, invocation.Main)
	if err != nil {
		result.Err = outcome.NewError(outcome.KindTransport, targetCtx,
			"remote shell failed", "").Wrap(err)
		e.notifier.OnArchiveError(ctx, rec, result.Err)
		return result
	}
	if res.ExitCode != 0 {
		result.Err = outcome.NewError(outcome.KindTransport, targetCtx,
			fmt.Sprintf("archiver exited with status %d", res.ExitCode), firstLine(res.Stderr))
		e.notifier.OnArchiveError(ctx, rec, result.Err)
		e.writeTargetLogs(logger, rec, rule, setIndex, result, res.Stdout)
		return result
	}

	bytesWritten, perr := parseResults(res.Stdout, targetCtx)
	if perr != nil {
		result.Err = perr
		e.notifier.OnArchiveError(ctx, rec, perr)
		e.writeTargetLogs(logger, rec, rule, setIndex, result, res.Stdout)
		return result
	}

	result.BytesWritten = bytesWritten
	e.writeTargetLogs(logger, rec, rule, setIndex, result, res.Stdout)
	logger.Info().
		Str("target", target.String()).
		Int64("bytes", bytesWritten).
		Msg("target archived")
	return result
}

// writeTargetLogs produces the raw results log and the status summary
// under the archive's logDir. Log trouble is logged, not fatal: the
// archive itself already streamed.
func (e *Executor) writeTargetLogs(logger zerolog.Logger, rec *archive.Record,
	rule archive.Rule, setIndex int, result outcome.TargetResult, raw string) {

	base := rec.Meta.Name + "." + string(rule) + "." + strconv.Itoa(setIndex)
	if err := os.MkdirAll(rec.Storage.LogDir, 0o755); err != nil {
		logger.Warn().Err(err).Msg("cannot create log dir")
		return
	}

	resultsPath := filepath.Join(rec.Storage.LogDir, base+".results.log")
	if err := os.WriteFile(resultsPath, []byte(raw), 0o644); err != nil {
		logger.Warn().Err(err).Str("path", resultsPath).Msg("results log not written")
	}

	status := fmt.Sprintf("label: %s\ncompleted: %s\ntotalBytesWritten: %d\n",
		result.Label, e.clock().Format(archive.ArchiveDateLayout), result.BytesWritten)
	if result.Err != nil {
		status += fmt.Sprintf("error: %s\n", result.Err.Message)
	}
	statusPath := filepath.Join(rec.Storage.LogDir, base+".status.log")
	if err := os.WriteFile(statusPath, []byte(status), 0o644); err != nil {
		logger.Warn().Err(err).Str("path", statusPath).Msg("status log not written")
	}
}

// sendTomorrow advertises the next volume, suppressed when tomorrow
// has nothing to do or a monthly falls outside the first week.
func (e *Executor) sendTomorrow(ctx context.Context, logger zerolog.Logger, rec *archive.Record, day rules.Day) {
	tomorrow := day.Now.AddDate(0, 0, 1)
	tomorrowRule := rec.Schedule.Rule(tomorrow.Weekday())

	if tomorrowRule == archive.RuleNone {
		return
	}
	if tomorrowRule == archive.RuleMonthly && !rules.CanDoMonthly(tomorrow.Day()) {
		return
	}

	setIndex, err := rotation.PeekNext(rec, tomorrowRule)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot preview tomorrow's set")
		return
	}

	notice := notify.Tomorrow{
		Rule:     tomorrowRule,
		SetIndex: setIndex,
		IncReset: rules.IncrementalReset(rec, tomorrow),
		Date:     tomorrow.Format("Mon Jan 2 2006"),
	}
	if err := e.notifier.NotifyTomorrow(ctx, rec, notice); err != nil {
		logger.Warn().Err(err).Msg("tomorrow notice failed")
	}
}

// persist commits the record. Success overwrites the canonical
// document; failure diverts to the error document and leaves the
// canonical one untouched.
func (e *Executor) persist(logger zerolog.Logger, rec *archive.Record, result *outcome.ArchiveResult) {
	var err error
	if result.Status == archive.StatusOK {
		err = e.persister.SaveCanonical(rec)
	} else {
		err = e.persister.SaveError(rec)
	}
	if err != nil {
		result.Err = outcome.NewError(outcome.KindStateSave,
			"persisting state for "+rec.Meta.Name, "cannot write document", "").Wrap(err)
		result.Status = archive.StatusFailed
		logger.Error().Err(err).Msg("state save failed")
	}
}
