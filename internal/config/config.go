// Package config loads the service settings from an optional YAML file, fills unset fields with
// defaults and applies environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aouyang1/go-ndvi-forecaster/backend"
	"github.com/aouyang1/go-ndvi-forecaster/region"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds all service settings
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Models   ModelsConfig   `yaml:"models"`
	Forecast ForecastConfig `yaml:"forecast"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s" validate:"gt=0"`

	// RateLimit is the sustained number of forecast requests per second. 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" default:"50" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" default:"100" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json text"`
}

type ModelsConfig struct {
	Dir string `yaml:"dir" default:"models" validate:"required"`

	// Files overrides the model file name of a region, keyed by region name
	Files map[string]string `yaml:"files"`
}

type ForecastConfig struct {
	DefaultBackend string `yaml:"default_backend" default:"statistical" validate:"oneof=statistical learned"`
}

type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector address. Tracing is disabled when empty.
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name" default:"ndvi-forecaster" validate:"required"`
	SampleRate  float64 `yaml:"sample_rate" default:"1" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when no file is provided
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("unable to set config defaults, %w", err)
	}
	return &c, nil
}

// Load reads the YAML file at path on top of the defaults, applies environment overrides and
// validates the result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config, %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("unable to parse config, %w", err)
		}
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NDVI_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("NDVI_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("NDVI_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("NDVI_MODEL_DIR"); v != "" {
		c.Models.Dir = v
	}
	if v := os.Getenv("NDVI_DEFAULT_BACKEND"); v != "" {
		c.Forecast.DefaultBackend = v
	}
	if v := os.Getenv("NDVI_OTEL_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
	}
}

// Validate checks field constraints and that every model file override names a known region
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("no config, %w", ErrInvalidConfig)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w, %w", ErrInvalidConfig, err)
	}
	for token := range c.Models.Files {
		if _, err := region.Parse(token); err != nil {
			return fmt.Errorf("models.files, %w, %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ModelFiles returns the model file overrides keyed by region
func (c *Config) ModelFiles() map[region.Region]string {
	files := make(map[region.Region]string, len(c.Models.Files))
	for token, name := range c.Models.Files {
		r, err := region.Parse(token)
		if err != nil {
			continue
		}
		files[r] = name
	}
	return files
}

// DefaultBackend returns the backend used when a request does not select one
func (c *Config) DefaultBackend() backend.Kind {
	k, err := backend.ParseKind(c.Forecast.DefaultBackend)
	if err != nil {
		return backend.KindStatistical
	}
	return k
}
