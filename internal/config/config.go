// Package config loads the server configuration from a YAML file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SyncConfig tunes the external calendar sync subsystem.
type SyncConfig struct {
	// TickSeconds is the period of the auto-sync scan loop.
	TickSeconds int `yaml:"tick_seconds" json:"tick_seconds"`

	// Workers caps the number of concurrent reconciliation attempts.
	Workers int `yaml:"workers" json:"workers"`

	// FetchTimeoutSeconds bounds a single feed download.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// GraceSeconds is how long shutdown waits for in-flight syncs.
	GraceSeconds int `yaml:"grace_seconds" json:"grace_seconds"`

	// HorizonDays bounds how far into the future recurring events are
	// expanded.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// DataDir holds the SQLite database.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// StaticDir is served at / for the frontend. Empty disables it.
	StaticDir string `yaml:"static_dir" json:"static_dir"`

	// SessionTTLHours is how long issued session tokens stay valid.
	SessionTTLHours int `yaml:"session_ttl_hours" json:"session_ttl_hours"`

	Sync SyncConfig `yaml:"sync" json:"sync"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          ":8080",
		DataDir:         "./data",
		StaticDir:       "./static",
		SessionTTLHours: 24 * 30,
		Sync: SyncConfig{
			TickSeconds:         60,
			Workers:             4,
			FetchTimeoutSeconds: 30,
			GraceSeconds:        30,
			HorizonDays:         365,
		},
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs from older versions still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.SessionTTLHours <= 0 {
		c.SessionTTLHours = def.SessionTTLHours
	}
	if c.Sync.TickSeconds <= 0 {
		c.Sync.TickSeconds = def.Sync.TickSeconds
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = def.Sync.Workers
	}
	if c.Sync.FetchTimeoutSeconds <= 0 {
		c.Sync.FetchTimeoutSeconds = def.Sync.FetchTimeoutSeconds
	}
	if c.Sync.GraceSeconds <= 0 {
		c.Sync.GraceSeconds = def.Sync.GraceSeconds
	}
	if c.Sync.HorizonDays <= 0 {
		c.Sync.HorizonDays = def.Sync.HorizonDays
	}
}

// SessionTTL returns the session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// TickInterval returns the auto-sync scan period as a duration.
func (s SyncConfig) TickInterval() time.Duration {
	return time.Duration(s.TickSeconds) * time.Second
}

// FetchTimeout returns the feed download timeout as a duration.
func (s SyncConfig) FetchTimeout() time.Duration {
	return time.Duration(s.FetchTimeoutSeconds) * time.Second
}

// GracePeriod returns the shutdown grace period as a duration.
func (s SyncConfig) GracePeriod() time.Duration {
	return time.Duration(s.GraceSeconds) * time.Second
}

// Horizon returns the recurrence expansion horizon as a duration.
func (s SyncConfig) Horizon() time.Duration {
	return time.Duration(s.HorizonDays) * 24 * time.Hour
}

// Load loads configuration from the given YAML path. A missing file is not
// an error: a default config is written there and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically via a temp file + rename, with
// 0600 permissions on the result.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dienstato-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
