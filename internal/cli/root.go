// Package cli wires the manager's command surface to the scheduler.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/config"
	"github.com/rudolphpienaar/backupmgr/internal/executor"
	"github.com/rudolphpienaar/backupmgr/internal/logging"
	"github.com/rudolphpienaar/backupmgr/internal/metrics"
	"github.com/rudolphpienaar/backupmgr/internal/notify"
	"github.com/rudolphpienaar/backupmgr/internal/outcome"
	"github.com/rudolphpienaar/backupmgr/internal/rules"
	"github.com/rudolphpienaar/backupmgr/internal/scheduler"
	"github.com/rudolphpienaar/backupmgr/internal/store"
	"github.com/rudolphpienaar/backupmgr/internal/transport"
)

type rootFlags struct {
	configDir    string
	settingsPath string
	archiveName  string
	forcedRule   string
	forcedDay    string
	noColor      bool
	verbose      bool
	usage        bool
}

// Execute parses arguments, runs the requested mode, and returns the
// process exit code.
func Execute(ctx context.Context, args []string) int {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "backupmgr",
		Short:         "Distributed incremental backup manager",
		Long:          "backupmgr decides what each configured archive backs up today,\nstreams it from the client hosts, rotates destination sets, and\npersists the updated state.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.usage {
				return cmd.Help()
			}
			return runSweep(cmd.Context(), flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "directory of archive documents (required)")
	rootCmd.PersistentFlags().StringVar(&flags.settingsPath, "settings", "/etc/backupmgr.yml", "manager settings file")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	rootCmd.Flags().StringVar(&flags.archiveName, "archive", "", "run only the named archive")
	rootCmd.Flags().StringVar(&flags.forcedRule, "rule", "", "force a rule: monthly|weekly|daily|none")
	rootCmd.Flags().StringVar(&flags.forcedDay, "day", "", "resolve the schedule as this day: Mon..Sun")
	rootCmd.Flags().BoolVar(&flags.usage, "usage", false, "show usage and exit")

	rootCmd.AddCommand(newServeCommand(flags))

	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr *outcome.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintln(os.Stderr, exitErr.Err)
			}
			return exitErr.Code
		}
		fmt.Fprintln(os.Stderr, err)
		return outcome.ExitCLIArgs
	}
	return outcome.ExitOK
}

// runSweep executes one pass over the configuration directory.
func runSweep(ctx context.Context, flags *rootFlags) error {
	logger, sched, _, err := buildScheduler(flags, nil)
	if err != nil {
		return err
	}

	day, err := buildDay(flags, time.Now())
	if err != nil {
		return &outcome.ExitError{Code: outcome.ExitCLIArgs, Err: err}
	}

	result, code := sched.Run(ctx, day)
	if code != outcome.ExitOK {
		return &outcome.ExitError{Code: code}
	}
	logger.Info().Int("archives", len(result.Archives)).Msg("run complete")
	return nil
}

// buildScheduler assembles the full pipeline from settings and flags.
func buildScheduler(flags *rootFlags, m *metrics.Metrics) (zerolog.Logger, *scheduler.Scheduler, config.Settings, error) {
	logger := logging.New(logging.Options{NoColor: flags.noColor, Verbose: flags.verbose})

	if flags.configDir == "" {
		return logger, nil, config.Settings{}, &outcome.ExitError{
			Code: outcome.ExitCLIArgs,
			Err:  errors.New("--config-dir is required"),
		}
	}
	info, err := os.Stat(flags.configDir)
	if err != nil || !info.IsDir() {
		return logger, nil, config.Settings{}, &outcome.ExitError{
			Code: outcome.ExitConfigDir,
			Err:  fmt.Errorf("config dir %s: not a readable directory", flags.configDir),
		}
	}

	settings, err := config.Load(flags.settingsPath)
	if err != nil {
		return logger, nil, config.Settings{}, &outcome.ExitError{Code: outcome.ExitCLIArgs, Err: err}
	}

	runner, err := transport.NewSSHRunner(logger, transport.SSHConfig{
		User:           settings.SSH.User,
		KeyFile:        settings.SSH.KeyFile,
		KnownHostsFile: settings.SSH.KnownHostsFile,
		Port:           settings.SSH.Port,
		ConnectTimeout: settings.SSH.ConnectTimeout,
	})
	if err != nil {
		return logger, nil, settings, &outcome.ExitError{Code: outcome.ExitCLIArgs, Err: err}
	}

	var mailer *notify.Mailer
	if settings.Mail.Relay != "" {
		mailer = notify.NewMailer(logger, settings.Mail.Relay, settings.Mail.From)
	}
	notifier := notify.NewMultiNotifier(
		notify.NewHookNotifier(logger, mailer),
		notify.NewSlackNotifier(logger, settings.Slack.WebhookURL),
	)

	st := store.New(flags.configDir, logger)
	exec := executor.New(logger, runner, transport.NewSystemPinger(logger), notifier, st,
		executor.WithArchiverBin(settings.Archiver.Bin),
		executor.WithReceiver(settings.Receiver.Command),
		executor.WithMetrics(m),
	)

	opts := []scheduler.Option{scheduler.WithMetrics(m)}
	if flags.archiveName != "" {
		opts = append(opts, scheduler.WithArchiveFilter(flags.archiveName))
	}
	return logger, scheduler.New(logger, st, exec, opts...), settings, nil
}

// buildDay resolves today plus any forced overrides.
func buildDay(flags *rootFlags, now time.Time) (rules.Day, error) {
	day := rules.Today(now)

	if flags.forcedDay != "" {
		weekday, err := parseWeekday(flags.forcedDay)
		if err != nil {
			return day, err
		}
		day = day.WithWeekday(weekday)
	}
	if flags.forcedRule != "" {
		rule, err := archive.ParseRule(flags.forcedRule)
		if err != nil {
			return day, err
		}
		day = day.WithForcedRule(rule)
	}
	return day, nil
}

func parseWeekday(value string) (time.Weekday, error) {
	days := map[string]time.Weekday{
		"Mon": time.Monday, "Tue": time.Tuesday, "Wed": time.Wednesday,
		"Thu": time.Thursday, "Fri": time.Friday, "Sat": time.Saturday,
		"Sun": time.Sunday,
	}
	if day, ok := days[value]; ok {
		return day, nil
	}
	return time.Sunday, fmt.Errorf("unknown day %q (want Mon..Sun)", value)
}
