// Package config loads acpgate configuration from a YAML file and supports
// live reload of the reloadable subset via a filesystem watcher.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or a raw nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// AgentConfig describes how to spawn the subordinate coding-agent process.
type AgentConfig struct {
	Binary    string   `yaml:"binary"`
	Args      []string `yaml:"args"`
	ModelFlag string   `yaml:"model_flag"`
	Model     string   `yaml:"model"`
}

// Config is the full acpgate configuration.
type Config struct {
	Agent AgentConfig `yaml:"agent"`

	// DefaultMode is the mode new sessions start in.
	DefaultMode string `yaml:"default_mode"`

	// DangerousPatterns extends the builtin dangerous-command patterns.
	// Reloadable.
	DangerousPatterns []string `yaml:"dangerous_patterns"`

	// ApprovalTimeout bounds how long an approval request may wait for the
	// client. Zero means wait forever.
	ApprovalTimeout Duration `yaml:"approval_timeout"`

	// LogLevel is one of debug, info, warn, error. Reloadable.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DefaultMode: "default",
		LogLevel:    "info",
	}
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = "default"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// SlogLevel maps the configured level name to a slog level, defaulting to
// info for unrecognized names.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Watch re-reads the file whenever it changes and calls onReload with the new
// configuration. Editors often replace files by rename, so the parent
// directory is watched rather than the file itself. Watch blocks until the
// watcher fails or stop is closed.
func Watch(path string, stop <-chan struct{}, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				slog.Warn("config reload failed", "path", path, "error", err)
				continue
			}
			slog.Info("config reloaded", "path", path)
			onReload(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		case <-stop:
			return nil
		}
	}
}
