// ABOUTME: CLI commands for exporting and importing workout data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/liftlog/internal/storage"
)

var (
	exportOutput string
	exportSince  string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export workout data",
	Long: `Export your logs, routines and personal records.

FORMATS:

  json       Full JSON export (suitable for backup/restore)
  yaml       YAML export (human-readable, also importable)
  markdown   Markdown tables per exercise

OPTIONS:

  --output, -o   Write to file instead of stdout
  --since        Only include logs since this date (markdown only)

EXAMPLES:

  liftlog export json -o backup.json
  liftlog export yaml
  liftlog export markdown --since 2024-01-01`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := currentUser()
		if err != nil {
			return err
		}
		liftApp.PRs.Flush(cmd.Context())

		var data []byte
		switch args[0] {
		case "json":
			data, err = liftApp.DB.ExportJSON(uid)
		case "yaml":
			data, err = liftApp.DB.ExportYAML(uid)
		case "markdown", "md":
			var since *time.Time
			if exportSince != "" {
				t, perr := parseTime(exportSince, time.Now())
				if perr != nil {
					return fmt.Errorf("invalid date: %s", exportSince)
				}
				since = &t
			}
			var md string
			md, err = liftApp.DB.ExportMarkdown(uid, since)
			data = []byte(md)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", args[0])
		}
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported to %s", exportOutput)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import workout logs from a JSON or YAML export",
	Long: `Import workout logs from a previous export.

Logs keep their IDs and are assigned to the signed-in user. Each one is
queued for upload, so importing on a new device restores the server too.
Records are rebuilt from the imported logs.

EXAMPLES:

  liftlog import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := currentUser()
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		data, err := storage.ParseExport(raw)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		n, err := liftApp.Workouts.Restore(cmd.Context(), data.Logs)
		if err != nil {
			return fmt.Errorf("import failed after %d logs: %w", n, err)
		}
		if _, err := liftApp.Records.RecomputeAll(cmd.Context(), uid); err != nil {
			return fmt.Errorf("failed to rebuild records: %w", err)
		}

		color.Green("✓ Imported %d logs from %s", n, args[0])
		if len(data.Routines) > 0 {
			fmt.Println(faint.Sprintf("  %d routines in the file were skipped; routines sync from the server", len(data.Routines)))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include logs since date (YYYY-MM-DD)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
