package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Default values applied when watch_config.yaml omits a field.
const (
	DefaultScanInterval = 3 * time.Minute
	DefaultMetricsAddr  = ":9090"
)

// validSensors are the sensor kinds the bridge can publish.
var validSensors = map[string]bool{
	"charging": true,
	"safezone": true,
	"state":    true,
}

// Config represents the watch_config.yaml structure
type Config struct {
	// Watches lists the watch IDs to poll.
	Watches []string `yaml:"watches"`

	// Sensors lists the enabled sensor kinds. Empty means all.
	Sensors []string `yaml:"sensors"`

	// ScanInterval is how often each watch is re-evaluated,
	// as a Go duration string ("3m", "90s").
	ScanInterval string `yaml:"scan_interval"`

	// Geocoding enables reverse geocoding of watch positions.
	Geocoding bool `yaml:"geocoding"`

	// MetricsAddr is the listen address for the Prometheus endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	scanInterval time.Duration
}

// Interval returns the parsed scan interval.
func (c *Config) Interval() time.Duration {
	return c.scanInterval
}

// EnabledSensors returns the configured sensor kinds, defaulting to all.
func (c *Config) EnabledSensors() []string {
	if len(c.Sensors) == 0 {
		return []string{"charging", "safezone", "state"}
	}
	return c.Sensors
}

// Loader reads and validates the bridge configuration
type Loader struct {
	configDir string
	logger    *zap.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
	}
}

// Load reads watch_config.yaml, applies defaults, and validates
func (l *Loader) Load() (*Config, error) {
	path := filepath.Join(l.configDir, "watch_config.yaml")
	l.logger.Debug("Loading watch config", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watch config: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Watch config loaded successfully",
		zap.Int("watches", len(config.Watches)),
		zap.Strings("sensors", config.EnabledSensors()),
		zap.Duration("scan_interval", config.Interval()))
	return config, nil
}

// Parse decodes and validates a raw watch_config.yaml document
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse watch config: %w", err)
	}

	if len(config.Watches) == 0 {
		return nil, fmt.Errorf("watch config must list at least one watch")
	}
	for _, id := range config.Watches {
		if id == "" {
			return nil, fmt.Errorf("watch IDs must be non-empty")
		}
	}

	for _, kind := range config.Sensors {
		if !validSensors[kind] {
			return nil, fmt.Errorf("unknown sensor kind %q", kind)
		}
	}

	config.scanInterval = DefaultScanInterval
	if config.ScanInterval != "" {
		interval, err := time.ParseDuration(config.ScanInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to parse scan_interval: %w", err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("scan_interval must be positive")
		}
		config.scanInterval = interval
	}

	if config.MetricsAddr == "" {
		config.MetricsAddr = DefaultMetricsAddr
	}

	return &config, nil
}
