package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"leasesync/internal/config"
	"leasesync/internal/hosts"
	"leasesync/internal/logs"
	"leasesync/internal/monitor"
	"leasesync/internal/remote"
	"leasesync/internal/runner"
	"leasesync/internal/web"
)

var (
	sha1ver   string
	buildTime string
	repoName  = "leasesync"
)

// exitError carries a process exit status. err is printed when set.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

type globalOptions struct {
	configDir    string
	settingsFile string
	inventory    string
	logLevel     string
}

// app is the wiring shared by the sync and watch commands
type app struct {
	settings   *config.Settings
	logger     zerolog.Logger
	logManager *logs.Manager
}

func (o *globalOptions) load(ctx context.Context, stderr io.Writer) (*app, error) {
	settingsFile := o.settingsFile
	if settingsFile == "" && o.configDir != "" {
		candidate := filepath.Join(o.configDir, config.SettingsFileName)
		if _, err := os.Stat(candidate); err == nil {
			settingsFile = candidate
		}
	}

	s, err := config.Load(ctx, settingsFile)
	if err != nil {
		return nil, err
	}
	if o.configDir != "" {
		s.ConfigDir = o.configDir
	}
	if o.inventory != "" {
		s.InventoryFile = o.inventory
	}
	if o.logLevel != "" {
		s.LogLevel = o.logLevel
	}

	logManager := logs.NewManager()
	logger, err := logs.New(s.LogLevel, s.LogFormat, stderr, logManager)
	if err != nil {
		return nil, err
	}
	if s.Source != "" {
		logger.Debug().Str("file", s.Source).Msg("Loaded settings")
	}

	return &app{settings: s, logger: logger, logManager: logManager}, nil
}

// runFunc loads the inventory afresh and performs one run
func (a *app) runFunc(dryRun bool) monitor.RunFunc {
	return func(ctx context.Context) runner.Report {
		path := a.settings.InventoryPath()
		inv, err := config.LoadInventory(path)
		if err != nil {
			a.logger.Error().Err(err).Str("file", path).Msg("Cannot load inventory")
			return runner.FailedReport(err)
		}

		dialer := &remote.SSHDialer{
			Port:           a.settings.SSHPort,
			Timeout:        a.settings.SSHTimeout,
			KnownHostsPath: a.settings.KnownHosts,
			Logger:         a.logger,
		}
		trackers := func(baseURL string) hosts.Service {
			return hosts.NewClient(baseURL, a.settings.HTTPTimeout, a.logger)
		}
		opts := runner.Options{ExportCommand: a.settings.ExportCommand, DryRun: dryRun}

		return runner.New(inv, dialer, trackers, opts, a.logger).Run(ctx)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "leasesync",
		Short:         "Sync RouterOS static DHCP leases from a master router to its slaves",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Directory holding leasesync.ini and config.yaml (default $CONFIG_DIR or ./)")
	cmd.PersistentFlags().StringVar(&opts.settingsFile, "settings", "", "Settings file (INI)")
	cmd.PersistentFlags().StringVar(&opts.inventory, "config", "", "Inventory file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, disabled")

	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newSyncCommand(opts *globalOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync and exit (0 success, 2 warnings, 1 failure)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := opts.load(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			report := a.runFunc(dryRun)(ctx)

			if dryRun {
				out := cmd.OutOrStdout()
				for _, p := range report.Planned {
					fmt.Fprintf(out, "%s: %s\n", p.Target, p.Command)
				}
			}

			if code := report.Outcome.ExitCode(); code != 0 {
				return &exitError{code: code, err: report.Err}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the changes instead of applying them")
	return cmd
}

func newWatchCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync on inventory changes and on an interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := opts.load(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a.logger.Info().
				Str("version", sha1ver).
				Str("inventory", a.settings.InventoryPath()).
				Dur("interval", a.settings.WatchInterval).
				Msg("Starting watch")

			mon := monitor.New(a.settings.InventoryPath(), a.settings.WatchInterval, a.runFunc(false), a.logManager, a.logger)

			if a.settings.HTTPListen != "" {
				server := web.NewServer(a.settings.HTTPListen, mon, a.logger)
				go func() {
					if err := server.Start(ctx); err != nil {
						a.logger.Error().Err(err).Msg("Status server failed")
					}
				}()
			}

			return mon.Run(ctx)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: Build %s, Time %s\n", repoName, sha1ver, buildTime)
			return nil
		},
	}
}
