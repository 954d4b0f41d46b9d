// ABOUTME: liftlog configuration with remote backend selection.
// ABOUTME: Handles settings, environment overrides and the remote store factory.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harperreed/liftlog/internal/remote"
	"github.com/harperreed/liftlog/internal/remote/charmstore"
	"github.com/harperreed/liftlog/internal/remote/memstore"
	"github.com/harperreed/liftlog/internal/remote/sqlstore"
	"github.com/harperreed/liftlog/internal/storage"
)

// Remote backend names.
const (
	RemoteCharm  = "charm"
	RemoteSQLite = "sqlite"
	RemoteMemory = "memory"
)

// Defaults for the duration settings.
const (
	DefaultRemoteTimeout    = 10 * time.Second
	DefaultPRDebounce       = time.Second
	DefaultQueueBackoffBase = 2 * time.Second
	DefaultQueueBackoffMax  = 5 * time.Minute
)

// Environment overrides.
const (
	EnvRemote  = "LIFTLOG_REMOTE"
	EnvDataDir = "LIFTLOG_DATA_DIR"
	EnvUser    = "LIFTLOG_USER"
)

// Config stores liftlog configuration.
type Config struct {
	// Remote selects the remote document store: "charm" (default), "sqlite" or "memory".
	Remote string `json:"remote,omitempty"`

	// DataDir is the root directory for local data. The local store lives in
	// DataDir/store. Supports ~ expansion. Defaults to ~/.local/share/liftlog.
	DataDir string `json:"data_dir,omitempty"`

	// RemotePath is the SQLite file used by the "sqlite" remote.
	// Defaults to DataDir/remote.db.
	RemotePath string `json:"remote_path,omitempty"`

	// CharmHost overrides the Charm server for the "charm" remote.
	CharmHost string `json:"charm_host,omitempty"`

	// UserID pins the signed-in user instead of asking the remote for one.
	UserID string `json:"user_id,omitempty"`

	RemoteTimeout    string `json:"remote_timeout,omitempty"`
	PRDebounce       string `json:"pr_debounce,omitempty"`
	QueueBackoffBase string `json:"queue_backoff_base,omitempty"`
	QueueBackoffMax  string `json:"queue_backoff_max,omitempty"`

	// ExercisesURL points at a hosted exercise bundle tried before the
	// embedded one.
	ExercisesURL string `json:"exercises_url,omitempty"`

	LogLevel string `json:"log_level,omitempty"`
	LogFile  string `json:"log_file,omitempty"`
}

// GetRemote returns the configured remote, defaulting to "charm".
func (c *Config) GetRemote() string {
	if c.Remote == "" {
		return RemoteCharm
	}
	return c.Remote
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetStoreDir returns the directory holding the local store.
func (c *Config) GetStoreDir() string {
	return filepath.Join(c.GetDataDir(), "store")
}

// GetRemotePath returns the SQLite remote file path.
func (c *Config) GetRemotePath() string {
	if c.RemotePath == "" {
		return filepath.Join(c.GetDataDir(), "remote.db")
	}
	return ExpandPath(c.RemotePath)
}

// GetCharmHost returns the Charm server host.
func (c *Config) GetCharmHost() string {
	if c.CharmHost == "" {
		return charmstore.DefaultHost
	}
	return c.CharmHost
}

// GetLogLevel returns the log level name, defaulting to "info".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return "info"
	}
	return strings.ToLower(c.LogLevel)
}

// GetLogFile returns the log file path with ~ expanded, or "".
func (c *Config) GetLogFile() string {
	return ExpandPath(c.LogFile)
}

func (c *Config) GetRemoteTimeout() time.Duration {
	return durationOr(c.RemoteTimeout, DefaultRemoteTimeout)
}

func (c *Config) GetPRDebounce() time.Duration {
	return durationOr(c.PRDebounce, DefaultPRDebounce)
}

func (c *Config) GetQueueBackoffBase() time.Duration {
	return durationOr(c.QueueBackoffBase, DefaultQueueBackoffBase)
}

func (c *Config) GetQueueBackoffMax() time.Duration {
	return durationOr(c.QueueBackoffMax, DefaultQueueBackoffMax)
}

// durationOr parses s, falling back to def when s is empty or invalid.
// Validate reports invalid values.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Validate checks enumerated and duration fields.
func (c *Config) Validate() error {
	switch c.GetRemote() {
	case RemoteCharm, RemoteSQLite, RemoteMemory:
	default:
		return fmt.Errorf("unknown remote: %q", c.Remote)
	}
	switch c.GetLogLevel() {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
	durations := map[string]string{
		"remote_timeout":     c.RemoteTimeout,
		"pr_debounce":        c.PRDebounce,
		"queue_backoff_base": c.QueueBackoffBase,
		"queue_backoff_max":  c.QueueBackoffMax,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: must be positive", name)
		}
	}
	return nil
}

// ApplyEnv overlays LIFTLOG_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRemote); v != "" {
		c.Remote = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvUser); v != "" {
		c.UserID = v
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenRemote creates the remote store for the configured backend, bounded
// by the remote timeout. The returned func releases the backend.
func (c *Config) OpenRemote() (remote.Store, func() error, error) {
	var (
		store   remote.Store
		closeFn = func() error { return nil }
	)

	switch c.GetRemote() {
	case RemoteCharm:
		s, err := charmstore.Open(charmstore.DefaultDBName, c.GetCharmHost())
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	case RemoteSQLite:
		s, err := sqlstore.Open(c.GetRemotePath())
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	case RemoteMemory:
		store = memstore.New()
	default:
		return nil, nil, fmt.Errorf("unknown remote: %q", c.Remote)
	}

	return remote.WithTimeout(store, c.GetRemoteTimeout()), closeFn, nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "liftlog", "config.json")
}

// LoadFile reads config from disk without environment overrides.
func LoadFile() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(GetConfigPath())
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads config from disk and applies environment overrides.
func Load() (*Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
