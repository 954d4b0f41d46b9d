// ABOUTME: Root Cobra command for liftlog CLI.
// ABOUTME: Handles config, logging and app lifecycle via PersistentPre/PostRunE.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/liftlog/internal/app"
	"github.com/harperreed/liftlog/internal/config"
	"github.com/harperreed/liftlog/internal/logging"
	"github.com/harperreed/liftlog/internal/records"
)

// version is set at build time.
var version = "dev"

// skipAppAnnotation marks commands that run without opening the stores.
const skipAppAnnotation = "liftlog/skip-app"

var (
	cfg       *config.Config
	logger    *slog.Logger
	liftApp   *app.App
	closeLogs func() error

	flagOffline  bool
	flagRemote   string
	flagDataDir  string
	flagLogLevel string
	flagNoMount  bool
)

var rootCmd = &cobra.Command{
	Use:     "liftlog",
	Short:   "Offline-first strength training log",
	Version: version,
	Long: `liftlog records strength training sets and keeps them in sync across devices.

Everything is written locally first. Changes are queued and uploaded when the
server is reachable, so logging works the same on a plane as in the gym.

QUICK START:

  $ liftlog exercises search squat              # Find an exercise ID
  $ liftlog log barbell-back-squat 100x5 110x5 120x3@8
  $ liftlog list                                # Recent logs
  $ liftlog prs                                 # Personal records

ROUTINES:

  $ liftlog routines create "Push A" barbell-bench-press overhead-press
  $ liftlog routines start <routine-id>         # Guided session

SYNC:

  $ liftlog sync status    # Queue and connectivity
  $ liftlog sync now       # Upload queued changes and reconcile

REMOTES:

  charm    Charm Cloud KV (default, E2E encrypted with your SSH key)
  sqlite   A SQLite file you host yourself (remote_path)
  memory   In-process, for trying things out

MCP INTEGRATION:

  Run 'liftlog mcp' to expose liftlog to MCP-compatible assistants:

  {
    "mcpServers": {
      "liftlog": { "command": "liftlog", "args": ["mcp"] }
    }
  }`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		if skipsApp(cmd) {
			return nil
		}
		return openApp(cmd.Context(), cmd.Name() == "mcp")
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdown()
	},
}

// skipsApp reports whether cmd runs without the stores: annotated commands,
// help and shell completion.
func skipsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipAppAnnotation] != "" {
			return true
		}
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flagRemote != "" {
		cfg.Remote = flagRemote
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return nil
}

// openApp builds the logger and the app, then mounts it. In MCP mode stdout
// belongs to the protocol and new-record notices go to the log instead.
func openApp(ctx context.Context, mcpMode bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.GetLogLevel()
	if cfg.LogLevel == "" {
		level = "warn"
	}

	var err error
	logger, closeLogs, err = logging.New(logging.Options{
		Level: level,
		File:  cfg.GetLogFile(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	onNewPRs := printNewPRs
	if mcpMode {
		onNewPRs = func(p records.NewPRs) {
			logger.Info("new personal record", "exercise", p.Log.ExerciseID, "log", p.Log.ID, "metrics", p.Broken)
		}
	}

	liftApp, err = app.New(ctx, app.Options{
		Config:   cfg,
		Logger:   logger,
		Offline:  flagOffline,
		OnNewPRs: onNewPRs,
	})
	if err != nil {
		return fmt.Errorf("failed to open liftlog: %w", err)
	}

	if flagNoMount {
		return nil
	}
	if _, err := liftApp.Mount(ctx); err != nil {
		return err
	}
	return nil
}

// shutdown flushes record recomputes and waits for queued uploads in flight.
func shutdown() error {
	var err error
	if liftApp != nil {
		err = liftApp.Close(context.Background())
		liftApp = nil
	}
	if closeLogs != nil {
		_ = closeLogs()
		closeLogs = nil
	}
	return err
}

func printNewPRs(p records.NewPRs) {
	for _, m := range p.Broken {
		slot := p.Record.Slot(m)
		if slot == nil {
			continue
		}
		color.New(color.FgYellow, color.Bold).Printf("★ New %s PR on %s: %s\n",
			metricLabel(m), p.Log.ExerciseID, formatSlot(m, slot))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "work offline; changes stay queued")
	rootCmd.PersistentFlags().StringVar(&flagRemote, "remote", "", "remote backend: charm, sqlite or memory")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "local data directory")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&flagNoMount, "no-mount", false, "skip the startup catalog load and reconcile")

	rootCmd.SetErr(os.Stderr)
}
