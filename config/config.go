// Package config loads router configuration from YAML with sane defaults.
package config

import (
	"fmt"
	"os"

	"github.com/BaSui01/agentroute/coordination"
	"github.com/BaSui01/agentroute/internal/server"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/retry"
	"github.com/BaSui01/agentroute/routing"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" env:"LEVEL"`
	// Encoding is json or console.
	Encoding string `json:"encoding" yaml:"encoding" env:"ENCODING"`
}

// TelemetryConfig controls trace export.
type TelemetryConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string  `json:"service_name" yaml:"service_name" env:"SERVICE_NAME"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Namespace string `json:"namespace" yaml:"namespace" env:"NAMESPACE"`
}

// Config is the full router configuration.
type Config struct {
	Registry  registry.Config     `json:"registry" yaml:"registry" env:"REGISTRY"`
	Routing   routing.Config      `json:"routing" yaml:"routing" env:"ROUTING"`
	Dispatch  coordination.Config `json:"dispatch" yaml:"dispatch" env:"DISPATCH"`
	Ops       server.Config       `json:"ops" yaml:"ops" env:"OPS"`
	Log       LogConfig           `json:"log" yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig     `json:"telemetry" yaml:"telemetry" env:"TELEMETRY"`
	Metrics   MetricsConfig       `json:"metrics" yaml:"metrics" env:"METRICS"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Registry: registry.DefaultConfig(),
		Routing:  routing.DefaultConfig(),
		Dispatch: coordination.DefaultConfig(),
		Ops:      server.DefaultConfig(),
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "agentroute",
			SampleRatio: 1.0,
		},
		Metrics: MetricsConfig{
			Namespace: "agentroute",
		},
	}
}

// Load reads a YAML file over the defaults, then overlays AGENTROUTE_*
// environment variables. Env values win over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv builds a config from defaults plus AGENTROUTE_* environment
// variables, without reading any file.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints the zero value cannot express.
func (c *Config) Validate() error {
	if c.Registry.TTL < 0 {
		return fmt.Errorf("registry.ttl must not be negative")
	}
	if c.Registry.SweepInterval < 0 {
		return fmt.Errorf("registry.sweep_interval must not be negative")
	}
	if c.Routing.MaxHops < 0 {
		return fmt.Errorf("routing.max_hops must not be negative")
	}
	if c.Routing.LoadThreshold < 0 || c.Routing.LoadThreshold > 1 {
		return fmt.Errorf("routing.load_threshold must be in [0, 1]")
	}
	if c.Dispatch.DefaultTimeout < 0 {
		return fmt.Errorf("dispatch.default_timeout must not be negative")
	}
	if p := c.Dispatch.DefaultRetry; p != nil {
		switch p.Strategy {
		case "", retry.BackoffLinear, retry.BackoffExponential, retry.BackoffFixed:
		default:
			return fmt.Errorf("dispatch.default_retry.strategy %q is unknown", p.Strategy)
		}
		if p.MaxDelay > 0 && p.BaseDelay > p.MaxDelay {
			return fmt.Errorf("dispatch.default_retry.base_delay exceeds max_delay")
		}
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.encoding %q is unknown", c.Log.Encoding)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be in [0, 1]")
	}
	return nil
}

// BuildLogger constructs the zap logger described by the log section.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(defaultString(c.Log.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = defaultString(c.Log.Encoding, "json")
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
