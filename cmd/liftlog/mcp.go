// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs the stdio MCP server alongside the background sync loops.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harperreed/liftlog/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout. While it runs, queued changes are
uploaded whenever the server is reachable.

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "liftlog": {
        "command": "liftlog",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  log_workout           Log sets for an exercise
  list_workouts         List recent logs
  delete_workout        Delete a log
  get_personal_records  Personal records per exercise
  list_exercises        Search the exercise catalog
  list_routines         Saved routines
  sync_now              Upload queued changes and reconcile
  queue_status          Pending and failed uploads

AVAILABLE RESOURCES:

  liftlog://summary     Sync state, recent logs and records`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(liftApp, version)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return liftApp.Run(ctx)
		})
		g.Go(func() error {
			defer stop()
			return server.Serve(ctx)
		})
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
