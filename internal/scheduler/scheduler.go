// Package scheduler discovers archive documents, orders them by
// today's priority, and runs them sequentially through the executor.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/metrics"
	"github.com/rudolphpienaar/backupmgr/internal/outcome"
	"github.com/rudolphpienaar/backupmgr/internal/rules"
	"github.com/rudolphpienaar/backupmgr/internal/store"
)

// ArchiveRunner is the executor seam.
type ArchiveRunner interface {
	Run(ctx context.Context, rec *archive.Record, day rules.Day) outcome.ArchiveResult
}

// Scheduler drives one sweep over a configuration directory.
type Scheduler struct {
	logger  zerolog.Logger
	store   *store.Store
	runner  ArchiveRunner
	metrics *metrics.Metrics
	filter  string
}

// Option customizes the scheduler.
type Option func(*Scheduler)

// WithArchiveFilter retains only the named archive.
func WithArchiveFilter(name string) Option {
	return func(s *Scheduler) { s.filter = name }
}

// WithMetrics attaches run collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New constructs a Scheduler.
func New(logger zerolog.Logger, st *store.Store, runner ArchiveRunner, opts ...Option) *Scheduler {
	s := &Scheduler{logger: logger, store: st, runner: runner}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type queued struct {
	rec  *archive.Record
	rule archive.Rule
}

// Run executes one sweep and returns the aggregated result plus the
// process exit code.
func (s *Scheduler) Run(ctx context.Context, day rules.Day) (outcome.RunResult, int) {
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()
	result := outcome.RunResult{RunID: runID}
	started := time.Now()

	entries, conflicts, err := s.store.Discover()
	if err != nil {
		logger.Error().Err(err).Str("dir", s.store.Dir()).Msg("configuration directory unreadable")
		return result, outcome.ExitConfigDir
	}
	result.Skipped = append(result.Skipped, conflicts...)

	queue := make([]queued, 0, len(entries))
	for _, entry := range entries {
		if s.filter != "" && entry.Name != s.filter {
			continue
		}
		rec, err := s.store.Load(entry)
		if err != nil {
			logger.Warn().Err(err).Str("archive", entry.Name).Msg("document skipped")
			result.Skipped = append(result.Skipped, entry.Name)
			continue
		}
		queue = append(queue, queued{rec: rec, rule: rules.Resolve(rec, day)})
	}

	if len(queue) == 0 {
		if s.filter != "" || len(result.Skipped) > 0 {
			logger.Error().
				Str("filter", s.filter).
				Strs("skipped", result.Skipped).
				Msg("no loadable archive document")
			return result, outcome.ExitDocLoad
		}
		logger.Info().Msg("nothing to do")
		return result, outcome.ExitOK
	}

	// Lighter tiers first; ties keep discovery order.
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].rule.Priority() < queue[j].rule.Priority()
	})

	logger.Info().
		Int("archives", len(queue)).
		Str("weekday", day.Weekday.String()).
		Msg("sweep starting")

	stateSaveFailed := false
	for _, item := range queue {
		if ctx.Err() != nil {
			logger.Warn().Msg("sweep cancelled")
			break
		}
		archiveResult := s.runner.Run(ctx, item.rec, day)
		result.Archives = append(result.Archives, archiveResult)
		if archiveResult.Err != nil && archiveResult.Err.Kind == outcome.KindStateSave {
			stateSaveFailed = true
		}
	}

	s.metrics.ObserveRunDuration(time.Since(started))

	code := outcome.ExitOK
	switch {
	case stateSaveFailed:
		code = outcome.ExitStateSave
	case result.Failed():
		code = outcome.ExitBackupFailed
	default:
		s.metrics.SetLastSuccessfulRun(time.Now())
	}

	logger.Info().
		Int("archives", len(result.Archives)).
		Int("skipped_documents", len(result.Skipped)).
		Bool("failed", result.Failed()).
		Int("exit_code", code).
		Msg("sweep finished")
	return result, code
}
