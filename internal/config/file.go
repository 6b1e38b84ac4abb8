// Package config handles visreg configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level visreg configuration.
type Config struct {
	Harness   HarnessConfig   `yaml:"harness"`
	Viewports []Viewport      `yaml:"viewports"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	History   HistoryConfig   `yaml:"history"`
	Report    ReportConfig    `yaml:"report"`
	Serve     ServeConfig     `yaml:"serve"`
}

// HarnessConfig locates the test-harness page and the browser driving it.
type HarnessConfig struct {
	// URL of the harness page that exposes window.__visreg.
	URL string `yaml:"url"`
	// BrowserURL is the WebSocket control URL of an external Chrome.
	// Empty = launch a local Chrome.
	BrowserURL string `yaml:"browser_url"`
	// Stealth applies bot-detection evasion to the harness page.
	Stealth bool `yaml:"stealth"`
	// ScriptTimeout caps any single in-page script execution. Exceeding it
	// fails the run; there are no retries.
	ScriptTimeout time.Duration `yaml:"script_timeout"`
}

// Viewport is a named browser window size.
type Viewport struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// SnapshotsConfig controls where baseline artifacts live.
type SnapshotsConfig struct {
	Dir string `yaml:"dir"`
}

// HistoryConfig enables the optional sqlite run history.
type HistoryConfig struct {
	// DB is the sqlite file path. Empty disables history.
	DB string `yaml:"db"`
}

// ReportConfig defines result sinks.
type ReportConfig struct {
	Sinks []SinkConfig `yaml:"sinks"`
}

// SinkConfig defines one output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// ServeConfig configures the artifact viewer server.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Harness.ScriptTimeout <= 0 {
		c.Harness.ScriptTimeout = 10 * time.Second
	}
	if c.Snapshots.Dir == "" {
		c.Snapshots.Dir = "./snapshots"
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8831"
	}
	if len(c.Viewports) == 0 {
		c.Viewports = []Viewport{{Name: "default", Width: 1024, Height: 768}}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Viewports))
	for _, vp := range c.Viewports {
		if vp.Name == "" {
			return fmt.Errorf("config: viewport with empty name")
		}
		if vp.Width <= 0 || vp.Height <= 0 {
			return fmt.Errorf("config: viewport %q has non-positive size %dx%d", vp.Name, vp.Width, vp.Height)
		}
		if seen[vp.Name] {
			return fmt.Errorf("config: duplicate viewport name %q", vp.Name)
		}
		seen[vp.Name] = true
	}
	for _, s := range c.Report.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: webhook sink without url")
			}
		default:
			return fmt.Errorf("config: unknown sink type %q", s.Type)
		}
	}
	return nil
}
