package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/verygreenboi/putio-trauma/internal/progress"
	"github.com/verygreenboi/putio-trauma/internal/putio"
)

// DefaultPath is read when no --config flag is given and the file exists.
const DefaultPath = "~/.config/putio-sync/config.yaml"

// ErrMissingToken is returned by Validate when no API token is configured.
var ErrMissingToken = errors.New("config: PUTIO_TOKEN is required")

var validate = validator.New()

// Config defines configuration for the putio-sync CLI.
type Config struct {
	Token             string      `yaml:"token"`
	APIURL            string      `yaml:"api_url" validate:"required,url"`
	Workers           int         `yaml:"workers" validate:"min=1,max=64"`
	PerPage           int         `yaml:"per_page" validate:"min=1,max=1000"`
	StagingDir        string      `yaml:"staging_dir"`
	BufferSize        int64       `yaml:"buffer_size" validate:"min=1"`
	RequestsPerSecond float64     `yaml:"requests_per_second" validate:"min=0"`
	LogLevel          string      `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat         string      `yaml:"log_format" validate:"oneof=console json"`
	Progress          *bool       `yaml:"progress"`
	MetricsFile       string      `yaml:"metrics_file"`
	Retry             RetryConfig `yaml:"retry"`
}

// RetryConfig defines retry behavior for API and download requests.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts" validate:"min=0,max=20"`
	Backoff    time.Duration `yaml:"backoff" validate:"min=0"`
	MaxBackoff time.Duration `yaml:"max_backoff" validate:"gtefield=Backoff"`
}

// ShowProgress reports whether the progress display is enabled. An explicit
// setting wins; otherwise it follows whether output goes to a terminal.
func (c Config) ShowProgress(terminal bool) bool {
	if c.Progress != nil {
		return *c.Progress
	}
	return terminal
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		APIURL:     putio.DefaultBaseURL,
		Workers:    3,
		PerPage:    putio.DefaultPerPage,
		BufferSize: 1024 * 1024, // 1MiB
		LogLevel:   "info",
		LogFormat:  "console",
		Retry: RetryConfig{
			Attempts:   5,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	Token             string          `yaml:"token"`
	APIURL            string          `yaml:"api_url"`
	Workers           int             `yaml:"workers"`
	PerPage           int             `yaml:"per_page"`
	StagingDir        string          `yaml:"staging_dir"`
	BufferSize        string          `yaml:"buffer_size"`
	RequestsPerSecond float64         `yaml:"requests_per_second"`
	LogLevel          string          `yaml:"log_level"`
	LogFormat         string          `yaml:"log_format"`
	Progress          *bool           `yaml:"progress"`
	MetricsFile       string          `yaml:"metrics_file"`
	Retry             yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   *int   `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file. A leading ~ in path
// is expanded to the user's home directory.
func LoadFromFile(path string) (Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("expand config path: %w", err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Token != "" {
		cfg.Token = yc.Token
	}
	if yc.APIURL != "" {
		cfg.APIURL = yc.APIURL
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.PerPage != 0 {
		cfg.PerPage = yc.PerPage
	}
	if yc.StagingDir != "" {
		dir, err := homedir.Expand(yc.StagingDir)
		if err != nil {
			return Config{}, fmt.Errorf("expand staging_dir: %w", err)
		}
		cfg.StagingDir = dir
	}
	if yc.BufferSize != "" {
		size, err := progress.ParseBytes(yc.BufferSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse buffer_size: %w", err)
		}
		cfg.BufferSize = size
	}
	if yc.RequestsPerSecond != 0 {
		cfg.RequestsPerSecond = yc.RequestsPerSecond
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.LogFormat != "" {
		cfg.LogFormat = yc.LogFormat
	}
	if yc.Progress != nil {
		cfg.Progress = yc.Progress
	}
	if yc.MetricsFile != "" {
		cfg.MetricsFile = yc.MetricsFile
	}
	if yc.Retry.Attempts != nil {
		cfg.Retry.Attempts = *yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadDefaultFile loads DefaultPath if it exists. A missing file yields
// Default() and no error.
func LoadDefaultFile() (Config, error) {
	path, err := homedir.Expand(DefaultPath)
	if err != nil {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return LoadFromFile(path)
}

// LoadFromEnv loads configuration from environment variables.
// The token comes from PUTIO_TOKEN; everything else uses the PUTIO_SYNC_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("PUTIO_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("PUTIO_SYNC_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("PUTIO_SYNC_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PUTIO_SYNC_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("PUTIO_SYNC_PER_PAGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PUTIO_SYNC_PER_PAGE: %w", err)
		}
		c.PerPage = n
	}
	if v := os.Getenv("PUTIO_SYNC_STAGING_DIR"); v != "" {
		c.StagingDir = v
	}
	if v := os.Getenv("PUTIO_SYNC_BUFFER_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse PUTIO_SYNC_BUFFER_SIZE: %w", err)
		}
		c.BufferSize = size
	}
	if v := os.Getenv("PUTIO_SYNC_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse PUTIO_SYNC_REQUESTS_PER_SECOND: %w", err)
		}
		c.RequestsPerSecond = f
	}
	if v := os.Getenv("PUTIO_SYNC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PUTIO_SYNC_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("PUTIO_SYNC_PROGRESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse PUTIO_SYNC_PROGRESS: %w", err)
		}
		c.Progress = &b
	}
	if v := os.Getenv("PUTIO_SYNC_METRICS_FILE"); v != "" {
		c.MetricsFile = v
	}
	if v := os.Getenv("PUTIO_SYNC_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PUTIO_SYNC_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("PUTIO_SYNC_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse PUTIO_SYNC_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("PUTIO_SYNC_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse PUTIO_SYNC_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration. A missing token is reported as
// ErrMissingToken so callers can tell it apart from other problems.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		if e.Param() != "" {
			return fmt.Errorf("config: %s failed %s=%s (value: %v)", e.Namespace(), e.Tag(), e.Param(), e.Value())
		}
		return fmt.Errorf("config: %s failed %s (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return fmt.Errorf("config: %w", err)
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Token != "" {
		c.Token = override.Token
	}
	if override.APIURL != "" {
		c.APIURL = override.APIURL
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.PerPage != 0 {
		c.PerPage = override.PerPage
	}
	if override.StagingDir != "" {
		c.StagingDir = override.StagingDir
	}
	if override.BufferSize != 0 {
		c.BufferSize = override.BufferSize
	}
	if override.RequestsPerSecond != 0 {
		c.RequestsPerSecond = override.RequestsPerSecond
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		c.LogFormat = override.LogFormat
	}
	if override.Progress != nil {
		c.Progress = override.Progress
	}
	if override.MetricsFile != "" {
		c.MetricsFile = override.MetricsFile
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
