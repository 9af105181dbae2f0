// Package config provides configuration management for openchamber-desktop.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerURLEnvVar is the environment variable holding an explicit remote
// server URL. When set (and valid), the supervisor never spawns a sidecar.
const ServerURLEnvVar = "OPENCHAMBER_SERVER_URL"

// Config holds all configuration options for the desktop launcher.
type Config struct {
	// Sidecar
	Executable   string `yaml:"executable"`    // backend executable name
	ResourceRoot string `yaml:"resource_root"` // root dir for bundled web assets

	// Server selection
	ServerURL string `yaml:"server_url"` // explicit remote URL, skips spawning
	DevMode   bool   `yaml:"dev_mode"`   // probe DevURL before spawning
	DevURL    string `yaml:"dev_url"`    // well-known developer server URL

	// Health probing
	HealthTimeout time.Duration `yaml:"health_timeout"`
	PollInterval  time.Duration `yaml:"poll_interval"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"` // empty = disabled
	Verbose     bool   `yaml:"verbose"`
	LogFormat   string `yaml:"log_format"` // json, text

	// Backend stats scraping (dashboard)
	BackendScrapeInterval time.Duration `yaml:"backend_scrape_interval"`

	// Dashboard
	TUIEnabled bool `yaml:"tui"`

	// Diagnostic modes
	PrintCmd      bool `yaml:"-"`
	SkipPreflight bool `yaml:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Sidecar
		Executable:   "openchamber-server",
		ResourceRoot: ".",

		// Server selection
		DevURL: "http://127.0.0.1:3001",

		// Health probing
		HealthTimeout: 20 * time.Second,
		PollInterval:  250 * time.Millisecond,

		// Observability
		MetricsAddr: "",
		LogFormat:   "json",

		// Backend stats
		BackendScrapeInterval: 2 * time.Second,
	}
}

// LoadFile merges settings from a YAML config file into cfg.
// Fields absent from the file keep their current values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

// ApplyEnv applies environment-variable inputs to cfg.
// An invalid OPENCHAMBER_SERVER_URL is ignored rather than fatal; the
// launcher falls back to spawning a local sidecar.
func ApplyEnv(cfg *Config) {
	if raw, ok := os.LookupEnv(ServerURLEnvVar); ok {
		if url, err := NormalizeServerURL(raw); err == nil {
			cfg.ServerURL = url
		}
	}
}
