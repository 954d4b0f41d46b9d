// ABOUTME: CLI commands for sync state and the upload queue.
// ABOUTME: Supports now, status, retry, discard, and Charm link/reset/wipe.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/charmbracelet/charm/kv"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/liftlog/internal/config"
	"github.com/harperreed/liftlog/internal/remote/charmstore"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync workout data across devices",
	Long: `Sync workout data across devices.

Writes are saved locally and queued. The queue drains automatically whenever
the server is reachable; items that fail three times are parked as failed
until you retry or discard them.

COMMANDS:

  now         Upload queued changes and reconcile logs with the server
  status      Show connectivity and the upload queue
  retry       Re-arm a failed queue item
  discard     Drop a queue item without applying it
  link        Link this device to your Charm account
  unlink      Disconnect this device from Charm
  reset       Reset the local Charm replica from the cloud (destructive)
  wipe        Delete cloud and local Charm data (destructive)`,
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Upload queued changes and reconcile",
	RunE: func(cmd *cobra.Command, args []string) error {
		drained, rec, err := liftApp.SyncNow(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		color.Green("✓ Sync complete")
		fmt.Printf("  Uploaded: %d of %d\n", drained.Succeeded, drained.Attempted)
		if drained.Retrying > 0 || drained.Failed > 0 {
			color.Yellow("  Retrying: %d  Failed: %d", drained.Retrying, drained.Failed)
		}
		fmt.Printf("  Pulled: %d  Removed: %d  Kept (pending upload): %d\n",
			rec.Inserted, rec.Removed, rec.Protected)
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := liftApp.Status()
		if err != nil {
			return err
		}

		fmt.Println("Remote:", cfg.GetRemote())
		if st.Online {
			color.Green("✓ Online")
		} else {
			color.Yellow("○ Offline")
		}
		if st.SignedIn {
			fmt.Println("User:", st.UID)
		} else {
			color.Yellow("Not signed in")
		}
		fmt.Println()
		fmt.Printf("  Logs: %d  Records: %d  Routines: %d\n", st.Logs, st.Records, st.Routines)
		fmt.Printf("  Queue: %d pending, %d in flight, %d failed\n",
			st.Queue.Pending, st.Queue.Processing, st.Queue.Failed)

		items, err := liftApp.Queue.List()
		if err != nil {
			return err
		}
		now := time.Now()
		for _, item := range items {
			line := fmt.Sprintf("  %s %s %s %s",
				faint.Sprint(padRight(strconv.FormatUint(item.ID, 10), 4)),
				padRight(string(item.Type), 16),
				padRight(shortID(item.EntityID), 9),
				faint.Sprint(humanize.RelTime(time.UnixMilli(item.Timestamp), now, "ago", "from now")))
			if item.Error != "" {
				line += color.RedString(" %s (%d tries)", truncate(item.Error, 50), item.RetryCount)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var syncRetryCmd = &cobra.Command{
	Use:   "retry <queue-id>",
	Short: "Re-arm a failed queue item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid queue id: %s", args[0])
		}
		if err := liftApp.Queue.Retry(id); err != nil {
			return fmt.Errorf("retry failed: %w", err)
		}
		color.Green("✓ Queue item %d will be retried", id)
		return nil
	},
}

var syncDiscardCmd = &cobra.Command{
	Use:   "discard <queue-id>",
	Short: "Drop a queue item",
	Long: `Drop a queue item without applying it.

The change it carries is lost on the server side. A discarded log upload
stays local until the next reconcile removes it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid queue id: %s", args[0])
		}
		if err := liftApp.Queue.Discard(id); err != nil {
			return fmt.Errorf("discard failed: %w", err)
		}
		color.Yellow("✗ Discarded queue item %d", id)
		return nil
	},
}

var syncLinkCmd = &cobra.Command{
	Use:         "link",
	Short:       "Link this device to Charm",
	Annotations: map[string]string{skipAppAnnotation: "true"},
	Long: `Link this device to your Charm account.

If you don't have a Charm account, one will be created using your SSH key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runCharm("link"); err != nil {
			return fmt.Errorf("failed to link: %w\n\nMake sure 'charm' CLI is installed: go install github.com/charmbracelet/charm@latest", err)
		}
		color.Green("\n✓ Device linked to Charm")
		if id, err := charmstore.UserID(); err == nil {
			fmt.Println("Charm ID:", id)
		}
		fmt.Println("Run 'liftlog sync now' to pull your logs.")
		return nil
	},
}

var syncUnlinkCmd = &cobra.Command{
	Use:         "unlink",
	Short:       "Disconnect from Charm",
	Annotations: map[string]string{skipAppAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runCharm("unlink"); err != nil {
			return fmt.Errorf("failed to unlink: %w", err)
		}
		color.Green("✓ Device unlinked from Charm")
		fmt.Println("Your local workout data is preserved.")
		return nil
	},
}

var syncResetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Reset the local Charm replica from the cloud",
	Annotations: map[string]string{skipAppAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCharmRemote(); err != nil {
			return err
		}
		fmt.Println("This will DELETE the local Charm replica and restore it from cloud.")
		fmt.Print("Continue? [y/N]: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "y" && confirm != "Y" {
			fmt.Println("Canceled.")
			return nil
		}

		if err := kv.Reset(charmstore.DefaultDBName); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		color.Green("✓ Local replica reset and restored from cloud")
		return nil
	},
}

var syncWipeCmd = &cobra.Command{
	Use:         "wipe",
	Short:       "Delete all Charm cloud and local data",
	Annotations: map[string]string{skipAppAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCharmRemote(); err != nil {
			return err
		}
		fmt.Println("This will PERMANENTLY DELETE all liftlog data in Charm Cloud and the local replica.")
		fmt.Print("Type 'wipe' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "wipe" {
			fmt.Println("Canceled.")
			return nil
		}

		result, err := kv.Wipe(charmstore.DefaultDBName)
		if err != nil {
			return fmt.Errorf("wipe failed: %w", err)
		}
		color.Green("✓ Data wiped successfully")
		fmt.Printf("  Cloud backups deleted: %d\n", result.CloudBackupsDeleted)
		fmt.Printf("  Local files deleted: %d\n", result.LocalFilesDeleted)
		return nil
	},
}

func requireCharmRemote() error {
	if cfg.GetRemote() != config.RemoteCharm {
		return fmt.Errorf("remote is %q; this command only applies to the charm remote", cfg.GetRemote())
	}
	return nil
}

func runCharm(sub string) error {
	charmCmd := exec.Command("charm", sub)
	charmCmd.Stdin = os.Stdin
	charmCmd.Stdout = os.Stdout
	charmCmd.Stderr = os.Stderr
	return charmCmd.Run()
}

func init() {
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncRetryCmd)
	syncCmd.AddCommand(syncDiscardCmd)
	syncCmd.AddCommand(syncLinkCmd)
	syncCmd.AddCommand(syncUnlinkCmd)
	syncCmd.AddCommand(syncResetCmd)
	syncCmd.AddCommand(syncWipeCmd)
	rootCmd.AddCommand(syncCmd)
}
