// Package config loads and validates scanwrap configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/scanwrap/internal/errors"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/store"
)

// Config represents the complete configuration.
type Config struct {
	// Scanner invocation settings
	Scanner ScannerConfig `yaml:"scanner" json:"scanner"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Database configuration, validated only when enabled
	Database DatabaseConfig `yaml:"database" json:"database" validate:"-"`

	// Recurring scans
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
}

// ScannerConfig holds settings applied to every scan session.
type ScannerConfig struct {
	// Scanner executable; empty means look up nmap on PATH
	Executable string `yaml:"executable" json:"executable"`

	// Directory for temporary report files; empty means the system temp dir
	TempDir string `yaml:"temp_dir" json:"temp_dir"`

	// Arguments prepended to every scan's extra arguments
	DefaultArgs []string `yaml:"default_args,omitempty" json:"default_args,omitempty"`

	// Maximum sessions running at once in the server and scheduler
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent" validate:"min=1,max=256"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Include source locations
	AddSource bool `yaml:"add_source" json:"add_source"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr"`
	Port           int           `yaml:"port" json:"port" validate:"min=0,max=65535"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	MaxRequestSize int64         `yaml:"max_request_size" json:"max_request_size" validate:"min=0"`
	CORS           CORSConfig    `yaml:"cors" json:"cors"`

	// Require an API key on every route except health
	AuthEnabled bool     `yaml:"auth_enabled" json:"auth_enabled"`
	APIKeys     []string `yaml:"api_keys,omitempty" json:"api_keys,omitempty" validate:"dive,min=16"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// DatabaseConfig enables report storage.
type DatabaseConfig struct {
	Enabled      bool `yaml:"enabled" json:"enabled"`
	store.Config `yaml:",inline"`
}

// ScheduleConfig lists recurring scan jobs.
type ScheduleConfig struct {
	Jobs []JobConfig `yaml:"jobs" json:"jobs" validate:"dive"`
}

// JobConfig is one recurring scan.
type JobConfig struct {
	Name    string   `yaml:"name" json:"name" validate:"required"`
	Cron    string   `yaml:"cron" json:"cron" validate:"required"`
	Targets []string `yaml:"targets" json:"targets" validate:"required,min=1,dive,required"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
	Store   bool     `yaml:"store" json:"store"`
}

const (
	defaultAPIPort        = 8080
	defaultMaxConcurrent  = 4
	defaultMaxRequestSize = 1 << 20
)

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scanner: ScannerConfig{
			MaxConcurrent: defaultMaxConcurrent,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		API: APIConfig{
			Enabled:        false,
			ListenAddr:     "127.0.0.1",
			Port:           defaultAPIPort,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Minute,
			IdleTimeout:    60 * time.Second,
			MaxRequestSize: defaultMaxRequestSize,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
			},
		},
		Database: DatabaseConfig{
			Enabled: false,
			Config:  store.DefaultConfig(),
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	// JSON is a subset of YAML, so one decoder handles both extensions.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse %s config", configFormat(path)), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func configFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "JSON"
	case ".yaml", ".yml":
		return "YAML"
	default:
		return "YAML (assumed)"
	}
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then rules that depend on other fields.
// The returned error is a *errors.ConfigError naming the first bad field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("failed %q validation", fe.Tag()), fe.Namespace(), fe.Value())
		}
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}

	if c.API.Enabled {
		if c.API.Port == 0 {
			return errors.ErrConfigInvalid("API.Port", c.API.Port)
		}
		if c.API.ListenAddr == "" {
			return errors.ErrConfigMissing("API.ListenAddr")
		}
		if c.API.AuthEnabled && len(c.API.APIKeys) == 0 {
			return errors.ErrConfigMissing("API.APIKeys")
		}
	}

	if c.Database.Enabled {
		if err := validate.Struct(c.Database.Config); err != nil {
			if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
				return errors.ErrConfigMissing("Database." + fieldErrs[0].Field())
			}
			return errors.WrapConfigError(errors.CodeValidation, "invalid database configuration", err)
		}
	}

	seen := make(map[string]bool, len(c.Schedule.Jobs))
	for i, job := range c.Schedule.Jobs {
		if seen[job.Name] {
			return errors.ErrConfigInvalid(fmt.Sprintf("Schedule.Jobs[%d].Name", i), job.Name)
		}
		seen[job.Name] = true

		if _, err := cron.ParseStandard(job.Cron); err != nil {
			ce := errors.ErrConfigInvalid(fmt.Sprintf("Schedule.Jobs[%d].Cron", i), job.Cron)
			ce.Cause = err
			return ce
		}
	}

	return nil
}

// LogConfig converts the logging section for internal/logging.
func (c *Config) LogConfig() logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(c.Logging.Level),
		Format:    logging.LogFormat(c.Logging.Format),
		Output:    c.Logging.Output,
		AddSource: c.Logging.AddSource,
	}
}

// GetAPIAddress returns the full API address.
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

// IsAPIEnabled returns true if the API server is enabled.
func (c *Config) IsAPIEnabled() bool {
	return c.API.Enabled
}
