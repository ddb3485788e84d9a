// Package config loads the daemon configuration from YAML with struct-tag
// defaults, so a missing or partial file still yields a runnable setup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration. Durations are strings in Go
// duration syntax ("45s", "3m") so they read naturally in YAML.
type Config struct {
	LogLevel string `yaml:"log_level" default:"info"`

	// UserID is the active user records are attributed to. Empty means not
	// signed in yet; measurements are buffered until it is set.
	UserID string `yaml:"user_id" default:""`

	Database struct {
		Path string `yaml:"path" default:"vitalsync.db"`
	} `yaml:"database"`

	Bridge struct {
		URL     string `yaml:"url" default:"http://127.0.0.1:8475"`
		Timeout string `yaml:"timeout" default:"10s"`
	} `yaml:"bridge"`

	Radio struct {
		ScanTimeout    string `yaml:"scan_timeout" default:"15s"`
		ConnectTimeout string `yaml:"connect_timeout" default:"30s"`
		// DeviceAddress pins the wearable to reconnect to on startup.
		DeviceAddress string `yaml:"device_address" default:""`
	} `yaml:"radio"`

	Sync struct {
		RealtimeInterval string `yaml:"realtime_interval" default:"45s"`
		FullInterval     string `yaml:"full_interval" default:"3m"`
		StaleWindow      string `yaml:"stale_window" default:"10m"`
	} `yaml:"sync"`

	Live struct {
		ListenAddr string `yaml:"listen_addr" default:":8090"`
	} `yaml:"live"`
}

// Default returns the configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path over the defaults. An empty path returns
// pure defaults; a missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, v := range map[string]string{
		"bridge.timeout":         c.Bridge.Timeout,
		"radio.scan_timeout":     c.Radio.ScanTimeout,
		"radio.connect_timeout":  c.Radio.ConnectTimeout,
		"sync.realtime_interval": c.Sync.RealtimeInterval,
		"sync.full_interval":     c.Sync.FullInterval,
		"sync.stale_window":      c.Sync.StaleWindow,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// duration parses a validated duration field, falling back when the field
// was set programmatically to something unparseable.
func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *Config) BridgeTimeout() time.Duration    { return duration(c.Bridge.Timeout, 10*time.Second) }
func (c *Config) ScanTimeout() time.Duration      { return duration(c.Radio.ScanTimeout, 15*time.Second) }
func (c *Config) ConnectTimeout() time.Duration   { return duration(c.Radio.ConnectTimeout, 30*time.Second) }
func (c *Config) RealtimeInterval() time.Duration { return duration(c.Sync.RealtimeInterval, 45*time.Second) }
func (c *Config) FullInterval() time.Duration     { return duration(c.Sync.FullInterval, 3*time.Minute) }
func (c *Config) StaleWindow() time.Duration      { return duration(c.Sync.StaleWindow, 10*time.Minute) }
