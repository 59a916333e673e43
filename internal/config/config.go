// Package config loads fsmonitor settings from defaults, YAML files,
// environment variables and flags, in increasing precedence.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
	"github.com/Aman-CERP/fsmonitor/internal/monitor"
)

// CurrentVersion is the config file schema version.
const CurrentVersion = 1

// Config is the full fsmonitor configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Action  ActionConfig  `yaml:"action" json:"action"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Sources lists the files that contributed, lowest precedence first.
	Sources []string `yaml:"-" json:"sources,omitempty"`
}

// WatchConfig configures the monitor.
type WatchConfig struct {
	// Filter is a file-name glob.
	Filter string `yaml:"filter" json:"filter"`

	// QuietPeriod is a Go duration string. "0s" is valid.
	QuietPeriod string `yaml:"quiet_period" json:"quiet_period"`

	Kinds         []string `yaml:"kinds" json:"kinds"`
	Recursive     *bool    `yaml:"recursive,omitempty" json:"recursive,omitempty"`
	Ignore        []string `yaml:"ignore" json:"ignore"`
	Gitignore     *bool    `yaml:"gitignore,omitempty" json:"gitignore,omitempty"`
	NoiseSuffixes []string `yaml:"noise_suffixes,omitempty" json:"noise_suffixes,omitempty"`

	// Poll forces the polling source.
	Poll         bool   `yaml:"poll" json:"poll"`
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`

	// Lock prevents two fsmonitor processes from watching one directory.
	Lock *bool `yaml:"lock,omitempty" json:"lock,omitempty"`
}

// ActionConfig configures the command run on change.
type ActionConfig struct {
	Command string `yaml:"command" json:"command"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      bool   `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	recursive := true
	gitignore := true
	lock := true
	return &Config{
		Version: CurrentVersion,
		Watch: WatchConfig{
			Filter:       monitor.DefaultFilter,
			QuietPeriod:  monitor.DefaultQuietPeriod.String(),
			Kinds:        []string{"modified", "size", "renamed"},
			Recursive:    &recursive,
			Gitignore:    &gitignore,
			PollInterval: monitor.DefaultPollInterval.String(),
			Lock:         &lock,
		},
		Action: ActionConfig{
			Timeout: "5m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/fsmonitor/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/fsmonitor/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fsmonitor", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "fsmonitor", "config.yaml")
	}
	return filepath.Join(home, ".config", "fsmonitor", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the watched directory dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/fsmonitor/config.yaml)
//  3. Project config (.fsmonitor.yaml in dir)
//  4. Environment variables (FSMONITOR_*)
//
// Flags are applied by the caller on top of the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if dir != "" {
		if err := cfg.loadFromFile(dir); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir, preferring
// .fsmonitor.yaml over .fsmonitor.yml. Empty if neither exists.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{".fsmonitor.yaml", ".fsmonitor.yml"} {
		if path := filepath.Join(dir, name); fileExists(path) {
			return path
		}
	}
	return ""
}

func (c *Config) loadFromFile(dir string) error {
	path := ProjectConfigPath(dir)
	if path == "" {
		return nil
	}
	return c.loadYAML(path)
}

// loadYAML merges a YAML file into c. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.ErrCodeConfigNotFound, fmt.Sprintf("read config file %s", path), err)
	}

	var parsed Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&parsed); err != nil && err != io.EOF {
		return errors.ConfigError(fmt.Sprintf("parse config file %s", path), err).
			WithDetail("path", path)
	}

	c.mergeWith(&parsed)
	c.Sources = append(c.Sources, path)
	return nil
}

// mergeWith merges set values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	w := &other.Watch
	if w.Filter != "" {
		c.Watch.Filter = w.Filter
	}
	if w.QuietPeriod != "" {
		c.Watch.QuietPeriod = w.QuietPeriod
	}
	if len(w.Kinds) > 0 {
		c.Watch.Kinds = w.Kinds
	}
	if w.Recursive != nil {
		c.Watch.Recursive = w.Recursive
	}
	if len(w.Ignore) > 0 {
		// Ignore patterns accumulate across layers.
		c.Watch.Ignore = append(c.Watch.Ignore, w.Ignore...)
	}
	if w.Gitignore != nil {
		c.Watch.Gitignore = w.Gitignore
	}
	if w.NoiseSuffixes != nil {
		c.Watch.NoiseSuffixes = w.NoiseSuffixes
	}
	if w.Poll {
		c.Watch.Poll = true
	}
	if w.PollInterval != "" {
		c.Watch.PollInterval = w.PollInterval
	}
	if w.Lock != nil {
		c.Watch.Lock = w.Lock
	}

	if other.Action.Command != "" {
		c.Action.Command = other.Action.Command
	}
	if other.Action.Timeout != "" {
		c.Action.Timeout = other.Action.Timeout
	}

	l := &other.Logging
	if l.Level != "" {
		c.Logging.Level = l.Level
	}
	if l.File {
		c.Logging.File = true
	}
	if l.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = l.MaxSizeMB
	}
	if l.MaxFiles != 0 {
		c.Logging.MaxFiles = l.MaxFiles
	}
}

// applyEnvOverrides applies FSMONITOR_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FSMONITOR_QUIET_PERIOD"); v != "" {
		c.Watch.QuietPeriod = v
	}
	if v := os.Getenv("FSMONITOR_FILTER"); v != "" {
		c.Watch.Filter = v
	}
	// Setting an interval implies polling.
	if v := os.Getenv("FSMONITOR_POLL_INTERVAL"); v != "" {
		c.Watch.PollInterval = v
		c.Watch.Poll = true
	}
	if v := os.Getenv("FSMONITOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FSMONITOR_RECURSIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch.Recursive = &b
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Version < 1 || c.Version > CurrentVersion {
		return errors.ConfigError(fmt.Sprintf("unsupported config version %d", c.Version), nil)
	}

	if q, err := time.ParseDuration(c.Watch.QuietPeriod); err != nil {
		return errors.ConfigError(fmt.Sprintf("watch.quiet_period: invalid duration %q", c.Watch.QuietPeriod), err)
	} else if q < 0 {
		return errors.ConfigError(fmt.Sprintf("watch.quiet_period must not be negative, got %s", q), nil)
	}

	if p, err := time.ParseDuration(c.Watch.PollInterval); err != nil {
		return errors.ConfigError(fmt.Sprintf("watch.poll_interval: invalid duration %q", c.Watch.PollInterval), err)
	} else if p <= 0 {
		return errors.ConfigError(fmt.Sprintf("watch.poll_interval must be positive, got %s", p), nil)
	}

	if _, err := filepath.Match(c.Watch.Filter, ""); err != nil {
		return errors.ConfigError(fmt.Sprintf("watch.filter: invalid glob %q", c.Watch.Filter), err)
	}

	if k, err := monitor.ParseKinds(c.Watch.Kinds); err != nil {
		return errors.ConfigError("watch.kinds", err)
	} else if k == 0 {
		return errors.ConfigError("watch.kinds must name at least one kind", nil)
	}

	if c.Action.Timeout != "" {
		if d, err := time.ParseDuration(c.Action.Timeout); err != nil || d < 0 {
			return errors.ConfigError(fmt.Sprintf("action.timeout: invalid duration %q", c.Action.Timeout), err)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.ConfigError(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 {
		return errors.ConfigError("logging.max_size_mb and logging.max_files must be non-negative", nil)
	}

	return nil
}

// QuietPeriod returns the parsed quiet period. Call after Validate.
func (c *Config) QuietPeriod() time.Duration {
	d, _ := time.ParseDuration(c.Watch.QuietPeriod)
	return d
}

// PollInterval returns the parsed poll interval. Call after Validate.
func (c *Config) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Watch.PollInterval)
	return d
}

// ActionTimeout returns the parsed action timeout, zero if unset.
func (c *Config) ActionTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Action.Timeout)
	return d
}

// LockEnabled reports whether the single-instance lock is on.
func (c *Config) LockEnabled() bool {
	return c.Watch.Lock == nil || *c.Watch.Lock
}

// WatchOptions converts the watch section to monitor options.
func (c *Config) WatchOptions() ([]monitor.Option, error) {
	kinds, err := monitor.ParseKinds(c.Watch.Kinds)
	if err != nil {
		return nil, err
	}

	opts := []monitor.Option{
		monitor.WithFilter(c.Watch.Filter),
		monitor.WithQuietPeriod(c.QuietPeriod()),
		monitor.WithKinds(kinds),
		monitor.WithRecursive(c.Watch.Recursive == nil || *c.Watch.Recursive),
		monitor.WithGitignore(c.Watch.Gitignore == nil || *c.Watch.Gitignore),
	}
	if len(c.Watch.Ignore) > 0 {
		opts = append(opts, monitor.WithIgnorePatterns(c.Watch.Ignore...))
	}
	if c.Watch.NoiseSuffixes != nil {
		opts = append(opts, monitor.WithNoiseSuffixes(c.Watch.NoiseSuffixes...))
	}
	if c.Watch.Poll {
		opts = append(opts, monitor.WithPolling(c.PollInterval()))
	}
	return opts, nil
}

// WriteYAML writes the configuration to a YAML file, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
