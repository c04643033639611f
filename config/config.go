package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "mfgstats"

// Config holds operator settings read from MFGSTATS_* environment variables.
type Config struct {
	// AllowedDirs is the filesystem allow-list for reading workbooks and
	// writing exports (MFGSTATS_ALLOWED_DIRS, comma separated).
	AllowedDirs []string `split_words:"true"`

	// EnableExports exposes export_* tools (MFGSTATS_ENABLE_EXPORTS).
	EnableExports bool `split_words:"true"`

	MaxConcurrentRequests int           `split_words:"true" default:"10"`
	MaxOpenDatasets       int           `split_words:"true" default:"4"`
	MaxCellsPerLoad       int           `split_words:"true" default:"2000000"`
	OperationTimeout      time.Duration `split_words:"true" default:"30s"`
	DatasetIdleTTL        time.Duration `split_words:"true" default:"30m"`

	// MetricColumn is the preferred metric header before heuristics apply.
	MetricColumn string `split_words:"true" default:"Value"`

	LogLevel string `split_words:"true" default:"info"`
}

// Load reads an optional .env file from dir (ignored when absent) and then
// parses the environment into a Config.
func Load(dir string) (*Config, error) {
	if dir != "" {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges envconfig cannot express.
func (c *Config) Validate() error {
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("config: max concurrent requests must be positive, got %d", c.MaxConcurrentRequests)
	}
	if c.MaxOpenDatasets <= 0 {
		return fmt.Errorf("config: max open datasets must be positive, got %d", c.MaxOpenDatasets)
	}
	if c.MaxCellsPerLoad <= 0 {
		return fmt.Errorf("config: max cells per load must be positive, got %d", c.MaxCellsPerLoad)
	}
	if c.OperationTimeout < 0 || c.DatasetIdleTTL < 0 {
		return fmt.Errorf("config: durations must not be negative")
	}
	return nil
}
