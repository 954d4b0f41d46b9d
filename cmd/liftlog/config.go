// ABOUTME: CLI commands for viewing and editing liftlog configuration.
// ABOUTME: Reads and writes the JSON config file without opening the stores.
package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/liftlog/internal/config"
)

// configFields maps config keys to their string fields.
func configFields(c *config.Config) map[string]*string {
	return map[string]*string{
		"remote":             &c.Remote,
		"data_dir":           &c.DataDir,
		"remote_path":        &c.RemotePath,
		"charm_host":         &c.CharmHost,
		"user_id":            &c.UserID,
		"remote_timeout":     &c.RemoteTimeout,
		"pr_debounce":        &c.PRDebounce,
		"queue_backoff_base": &c.QueueBackoffBase,
		"queue_backoff_max":  &c.QueueBackoffMax,
		"exercises_url":      &c.ExercisesURL,
		"log_level":          &c.LogLevel,
		"log_file":           &c.LogFile,
	}
}

func configKeys() []string {
	keys := make([]string, 0, 12)
	for k := range configFields(&config.Config{}) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "View or edit configuration",
	Annotations: map[string]string{skipAppAnnotation: "true"},
	Long: `View or edit the liftlog config file.

KEYS:

  ` + strings.Join(configKeys(), "\n  ") + `

Durations use Go syntax (10s, 500ms, 5m). Environment variables
LIFTLOG_REMOTE, LIFTLOG_DATA_DIR and LIFTLOG_USER override the file.`,
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration",
	Annotations: map[string]string{skipAppAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		fmt.Fprintln(cmd.OutOrStdout(), faint.Sprintf("remote=%s store=%s", cfg.GetRemote(), cfg.GetStoreDir()))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file path",
	Annotations: map[string]string{skipAppAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:         "set <key> <value>",
	Short:       "Set a config value (empty value clears it)",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{skipAppAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return setConfigValue(args[0], args[1])
	},
}

// setConfigValue updates one key in the file. Environment overrides are
// not written back.
func setConfigValue(key, value string) error {
	fileCfg, err := config.LoadFile()
	if err != nil {
		return err
	}

	field, ok := configFields(fileCfg)[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s (valid: %s)", key, strings.Join(configKeys(), ", "))
	}
	*field = value
	if err := fileCfg.Validate(); err != nil {
		return err
	}
	if err := fileCfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	color.Green("✓ %s = %q", key, value)
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
