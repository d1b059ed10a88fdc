package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rudolphpienaar/backupmgr/internal/metrics"
	"github.com/rudolphpienaar/backupmgr/internal/outcome"
)

const shutdownTimeout = 5 * time.Second

// newServeCommand runs the sweep on a cron schedule instead of once.
// The traditional deployment drove the manager from crontab; serve
// folds that timer in and adds the metrics listener.
func newServeCommand(flags *rootFlags) *cobra.Command {
	var cronSpec string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the nightly sweep on a cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, cronSpec)
		},
	}
	cmd.Flags().StringVar(&cronSpec, "cron", "0 1 * * *", "cron expression for the sweep")
	return cmd
}

func runServe(ctx context.Context, flags *rootFlags, cronSpec string) error {
	m := metrics.New()
	logger, sched, settings, err := buildScheduler(flags, m)
	if err != nil {
		return err
	}

	if _, err := cron.ParseStandard(cronSpec); err != nil {
		return &outcome.ExitError{Code: outcome.ExitCLIArgs, Err: err}
	}

	if settings.Metrics.Addr != "" {
		startMetricsServer(ctx, logger, m, settings.Metrics.Addr)
	}

	runner := cron.New()
	_, err = runner.AddFunc(cronSpec, func() {
		day, err := buildDay(flags, time.Now())
		if err != nil {
			logger.Error().Err(err).Msg("day resolution failed")
			return
		}
		result, code := sched.Run(ctx, day)
		if code != outcome.ExitOK {
			logger.Error().
				Int("exit_code", code).
				Int("archives", len(result.Archives)).
				Msg("scheduled sweep failed")
		}
	})
	if err != nil {
		return &outcome.ExitError{Code: outcome.ExitCLIArgs, Err: err}
	}

	logger.Info().Str("cron", cronSpec).Msg("manager serving")
	runner.Start()
	<-ctx.Done()

	stopCtx := runner.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("in-flight sweep did not stop in time")
	}
	logger.Info().Msg("manager stopped")
	return nil
}

func startMetricsServer(ctx context.Context, logger zerolog.Logger, m *metrics.Metrics, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics listener started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
