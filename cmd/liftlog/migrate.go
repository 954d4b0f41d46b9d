// ABOUTME: CLI command for copying remote data between backends.
// ABOUTME: Moves every collection from one remote to another, e.g. charm to sqlite.
package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/liftlog/internal/config"
	"github.com/harperreed/liftlog/internal/remote"
)

var (
	migrateFrom   string
	migrateTo     string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Copy remote data between backends",
	Annotations: map[string]string{skipAppAnnotation: "true"},
	Long: `Copy every document from one remote backend to another.

Use this when moving from Charm Cloud to a self-hosted SQLite remote or back.
Documents are upserted, so running it twice is harmless. The local store is
not touched; switch the remote with 'liftlog config set remote <name>' and
run 'liftlog sync now' afterwards.

USAGE:

  liftlog migrate --from charm --to sqlite --dry-run   # Preview
  liftlog migrate --from charm --to sqlite             # Copy`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateFrom == migrateTo {
			return fmt.Errorf("--from and --to must differ")
		}
		src, closeSrc, err := openRemoteNamed(migrateFrom)
		if err != nil {
			return fmt.Errorf("open %s: %w", migrateFrom, err)
		}
		defer closeSrc()
		dst, closeDst, err := openRemoteNamed(migrateTo)
		if err != nil {
			return fmt.Errorf("open %s: %w", migrateTo, err)
		}
		defer closeDst()

		if migrateDryRun {
			color.Yellow("Dry run mode - no changes will be made")
			fmt.Println()
		}

		res, err := remote.Copy(cmd.Context(), dst, src, migrateDryRun)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		colls := make([]string, 0, len(res.Copied))
		for c := range res.Copied {
			colls = append(colls, c)
		}
		sort.Strings(colls)
		for _, c := range colls {
			fmt.Printf("  %s %d\n", padRight(c, 16), res.Copied[c])
		}
		if res.Skipped > 0 {
			color.Yellow("  skipped %d documents without an id", res.Skipped)
		}
		if !migrateDryRun {
			color.Green("✓ Copied %s to %s", migrateFrom, migrateTo)
		}
		return nil
	},
}

// openRemoteNamed opens the configured remote settings with the backend
// swapped for name.
func openRemoteNamed(name string) (remote.Store, func() error, error) {
	c := *cfg
	c.Remote = name
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	return c.OpenRemote()
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", config.RemoteCharm, "source remote")
	migrateCmd.Flags().StringVar(&migrateTo, "to", config.RemoteSQLite, "destination remote")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	rootCmd.AddCommand(migrateCmd)
}
