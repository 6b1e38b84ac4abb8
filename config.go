package visreg

import (
	"github.com/hazyhaar/visreg/internal/config"
)

// Config is the top-level visreg configuration. Re-exported from internal.
type Config = config.Config

// HarnessConfig locates the test-harness page and the browser driving it.
type HarnessConfig = config.HarnessConfig

// Viewport is a named browser window size.
type Viewport = config.Viewport

// SnapshotsConfig controls where baseline artifacts live.
type SnapshotsConfig = config.SnapshotsConfig

// HistoryConfig enables the optional sqlite run history.
type HistoryConfig = config.HistoryConfig

// ReportConfig defines result sinks.
type ReportConfig = config.ReportConfig

// SinkConfig defines one output backend.
type SinkConfig = config.SinkConfig

// ServeConfig configures the artifact viewer server.
type ServeConfig = config.ServeConfig

// LoadConfigFile reads and validates a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
