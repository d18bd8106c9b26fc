package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/actividades/schedule"
)

const (
	// DefaultBaseURL is the Backendless collection the walkthrough targets.
	DefaultBaseURL = "https://smartaunt-us.backendless.app/api/data/actividades"

	// Default backend settings
	defaultTimeout = 30 * time.Second
	// Backendless rejects PATCH.
	defaultPartialUpdateMethod = "PUT"

	// Default monitoring settings
	defaultMetricsPrefix = "actividades"
	defaultJobName       = "actividades"

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultLogOutput = "stdout"

	defaultEnvFile = ".env"
)

// Environment variables that override file values.
const (
	EnvBaseURL  = "ACTIVIDADES_BASE_URL"
	EnvLogLevel = "ACTIVIDADES_LOG_LEVEL"
	EnvSchedule = "ACTIVIDADES_SCHEDULE"
)

// Config represents the complete application configuration
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

// BackendConfig holds the activities collection settings
type BackendConfig struct {
	// BaseURL is the collection endpoint, e.g. https://host/api/data/actividades
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each HTTP request
	Timeout time.Duration `yaml:"timeout"`

	// PartialUpdateMethod is the verb used for partial updates: PATCH or PUT
	PartialUpdateMethod string `yaml:"partial_update_method"`
}

// LoggingConfig defines logging behavior settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	VictoriaMetricsURL string `yaml:"victoriametrics_url"`
	MetricsPrefix      string `yaml:"metrics_prefix"`
	JobName            string `yaml:"jobname"`
}

// ScheduleConfig enables repeated runs
type ScheduleConfig struct {
	// Cron is a 5-field cron expression or a descriptor such as @hourly.
	// Empty means run once and exit.
	Cron string `yaml:"cron"`

	// ListenAddress serves /metrics while scheduled, e.g. ":9090"
	ListenAddress string `yaml:"listen_address"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend base URL is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid backend base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base URL must include scheme and host: %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend timeout must be positive")
	}
	switch c.Backend.PartialUpdateMethod {
	case "PATCH", "PUT":
	default:
		return fmt.Errorf("partial update method must be PATCH or PUT, got %q", c.Backend.PartialUpdateMethod)
	}
	if c.Schedule.Cron != "" {
		if _, err := schedule.Parse(c.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid schedule cron %q: %w", c.Schedule.Cron, err)
		}
	}
	if c.Schedule.ListenAddress != "" && c.Schedule.Cron == "" {
		return errors.New("schedule listen address requires a cron expression")
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultBaseURL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = defaultTimeout
	}
	if c.Backend.PartialUpdateMethod == "" {
		c.Backend.PartialUpdateMethod = defaultPartialUpdateMethod
	}
	c.Backend.PartialUpdateMethod = strings.ToUpper(c.Backend.PartialUpdateMethod)
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// ApplyEnv overrides file values with any of the ACTIVIDADES_* variables
// present in the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvSchedule); v != "" {
		c.Schedule.Cron = v
	}
}

// LoadEnvFiles loads KEY=VALUE pairs from the given .env files into the
// process environment without overriding variables that are already set.
// With no arguments it reads ".env" in the working directory and ignores it
// if absent. Explicitly named files must exist.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		paths = []string{defaultEnvFile}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %q: %w", p, err)
		}
	}
	return nil
}

// LoadConfig reads the YAML config file at the given path and returns a
// Config struct. An empty path starts from Default. Environment overrides
// are applied before defaults and validation.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = decodeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeFile(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}
