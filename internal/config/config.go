// Package config loads scanfinder settings from YAML, applies defaults and
// validates the result.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/scanfinder/internal/errors"
	"github.com/anstrom/scanfinder/internal/logging"
	"github.com/anstrom/scanfinder/internal/scanning"
)

// Config represents the application configuration
type Config struct {
	// Scan engine and orchestration settings
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Where result files are written
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ScanningConfig holds scanning-related settings
type ScanningConfig struct {
	// Number of concurrent probes
	Workers int `yaml:"workers" json:"workers" validate:"min=1,max=1024"`

	// Per-host timeout for host discovery
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" json:"discovery_timeout" validate:"gt=0"`

	// Per-host timeout for port scans
	PortScanTimeout time.Duration `yaml:"portscan_timeout" json:"portscan_timeout" validate:"gt=0"`

	// Number of most common ports covered by a port scan
	TopPorts int `yaml:"top_ports" json:"top_ports" validate:"min=1,max=65535"`

	// nmap executable; empty means look it up on PATH
	NmapPath string `yaml:"nmap_path" json:"nmap_path"`

	// Extra arguments passed to every nmap invocation
	ExtraArgs []string `yaml:"extra_args" json:"extra_args" validate:"dive,required"`

	// Run a port scan on the hosts found by discovery
	Followup bool `yaml:"followup" json:"followup"`

	// Probe start rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig holds probe start rate settings
type RateLimitConfig struct {
	// Enable rate limiting
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Maximum probe starts per second
	ProbesPerSecond float64 `yaml:"probes_per_second" json:"probes_per_second" validate:"required_if=Enabled true,gte=0"`
}

// OutputConfig holds result file settings
type OutputConfig struct {
	// Directory for result files; empty means the working directory
	Directory string `yaml:"directory" json:"directory"`

	// XMLPath, when set, receives an XML export of the run
	XMLPath string `yaml:"xml_path" json:"xml_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Output destination (stdout, stderr, or file path)
	Output string `yaml:"output" json:"output" validate:"required"`

	// Log rotation settings
	Rotation RotationConfig `yaml:"rotation" json:"rotation"`
}

// RotationConfig holds log rotation settings
type RotationConfig struct {
	// Enable log rotation
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Maximum file size in MB
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb" validate:"gte=0"`

	// Maximum number of backup files
	MaxBackups int `yaml:"max_backups" json:"max_backups" validate:"gte=0"`

	// Maximum age in days
	MaxAgeDays int `yaml:"max_age_days" json:"max_age_days" validate:"gte=0"`

	// Compress rotated files
	Compress bool `yaml:"compress" json:"compress"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	// Prometheus textfile written after the run; empty disables export
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	engine := scanning.DefaultNmapConfig()
	return &Config{
		Scanning: ScanningConfig{
			Workers:          10,
			DiscoveryTimeout: engine.DiscoveryTimeout,
			PortScanTimeout:  engine.PortScanTimeout,
			TopPorts:         engine.TopPorts,
			NmapPath:         "",
			Followup:         false,
			RateLimit: RateLimitConfig{
				Enabled:         false,
				ProbesPerSecond: 0,
			},
		},
		Output: OutputConfig{
			Directory: "",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
			Rotation: RotationConfig{
				Enabled:    false,
				MaxSizeMB:  100,
				MaxBackups: 5,
				MaxAgeDays: 30,
				Compress:   true,
			},
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	// Start with defaults
	config := Default()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	// JSON is a subset of YAML, so one decoder covers .yaml, .yml and .json.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse config %s", filepath.Base(path)), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewFileError(errors.CodeFileWrite, "failed to create config directory", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration, "failed to marshal config", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewFileError(errors.CodeFileWrite, "failed to write config file", path, err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration. The first failing field is reported
// as a VALIDATION config error naming the field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		cfgErr := errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("invalid configuration value: failed %q", fe.Tag()),
			fe.Namespace(), fe.Value())
		cfgErr.Cause = err
		return cfgErr
	}
	return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
}

// NmapConfig returns the engine settings described by the configuration.
func (c *Config) NmapConfig() scanning.NmapConfig {
	return scanning.NmapConfig{
		BinaryPath:       c.Scanning.NmapPath,
		DiscoveryTimeout: c.Scanning.DiscoveryTimeout,
		PortScanTimeout:  c.Scanning.PortScanTimeout,
		TopPorts:         c.Scanning.TopPorts,
		ExtraArgs:        c.Scanning.ExtraArgs,
	}
}

// ProbeRate returns the probe start rate, 0 when rate limiting is off.
func (c *Config) ProbeRate() float64 {
	if !c.Scanning.RateLimit.Enabled {
		return 0
	}
	return c.Scanning.RateLimit.ProbesPerSecond
}

// LoggerConfig converts the logging section for the logging package.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Logging.Level),
		Format: logging.LogFormat(c.Logging.Format),
		Output: c.Logging.Output,
		Rotation: logging.RotationConfig{
			Enabled:    c.Logging.Rotation.Enabled,
			MaxSizeMB:  c.Logging.Rotation.MaxSizeMB,
			MaxBackups: c.Logging.Rotation.MaxBackups,
			MaxAgeDays: c.Logging.Rotation.MaxAgeDays,
			Compress:   c.Logging.Rotation.Compress,
		},
	}
}
