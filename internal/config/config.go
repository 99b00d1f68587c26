// Package config loads the surveyrecon YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/dshills/surveyrecon/internal/coerce"
	"github.com/dshills/surveyrecon/internal/convention"
	"github.com/dshills/surveyrecon/internal/normalize"
	"github.com/dshills/surveyrecon/internal/reconcile"
	"github.com/dshills/surveyrecon/internal/schema"
)

// Config is the complete configuration.
type Config struct {
	Schema    SchemaConfig    `yaml:"schema"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Process   ProcessConfig   `yaml:"process"`
	Report    ReportConfig    `yaml:"report"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// SchemaConfig configures normalization.
type SchemaConfig struct {
	Defaults      normalize.Defaults    `yaml:"defaults"`
	Terminal      string                `yaml:"terminal"`
	OverrideTable string                `yaml:"override_table"`
	Overrides     []convention.Override `yaml:"overrides"`
}

// ReconcileConfig configures column matching.
type ReconcileConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// ProcessConfig configures row coercion.
type ProcessConfig struct {
	Workers     int  `yaml:"workers"`
	RequireRows bool `yaml:"require_rows"`
}

// ReportConfig configures the run summary.
type ReportConfig struct {
	MaxMessages int `yaml:"max_messages"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	MaxBodyMB   int      `yaml:"max_body_mb"`
}

// Default returns the built-in configuration.
func Default() *Config {
	d := normalize.DefaultOptions()
	return &Config{
		Schema: SchemaConfig{
			Defaults:      d.Defaults,
			Terminal:      schema.Terminal,
			OverrideTable: "default",
		},
		Reconcile: ReconcileConfig{FuzzyThreshold: reconcile.DefaultThreshold},
		Process:   ProcessConfig{Workers: 0},
		Report:    ReportConfig{MaxMessages: 5},
		Log:       LogConfig{Level: "info"},
		HTTP: HTTPConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			MaxBodyMB:   20,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path or a
// missing file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", filepath.Base(path), err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", filepath.Base(path), err)
			}
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets the environment change deployment settings.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("SURVEYRECON_HTTP_ADDR"); addr != "" {
		c.HTTP.Addr = addr
	}
	if level := os.Getenv("SURVEYRECON_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if w := os.Getenv("SURVEYRECON_WORKERS"); w != "" {
		if n, err := cast.ToIntE(w); err == nil {
			c.Process.Workers = n
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if t := c.Reconcile.FuzzyThreshold; t <= 0 || t >= 1 {
		return fmt.Errorf("config: reconcile.fuzzy_threshold must be in (0, 1), got %g", t)
	}
	if c.Process.Workers < 0 {
		return fmt.Errorf("config: process.workers must not be negative, got %d", c.Process.Workers)
	}
	if c.Report.MaxMessages < 0 {
		return fmt.Errorf("config: report.max_messages must not be negative, got %d", c.Report.MaxMessages)
	}
	if c.HTTP.MaxBodyMB < 0 {
		return fmt.Errorf("config: http.max_body_mb must not be negative, got %d", c.HTTP.MaxBodyMB)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if _, err := convention.LoadTable(c.Schema.OverrideTable, c.Schema.Overrides...); err != nil {
		return fmt.Errorf("config: schema: %w", err)
	}
	return nil
}

// NormalizeOptions returns the normalizer options.
func (c *Config) NormalizeOptions() (normalize.Options, error) {
	table, err := convention.LoadTable(c.Schema.OverrideTable, c.Schema.Overrides...)
	if err != nil {
		return normalize.Options{}, fmt.Errorf("config: schema: %w", err)
	}
	return normalize.Options{
		Defaults:  c.Schema.Defaults,
		Terminal:  c.Schema.Terminal,
		Overrides: table,
	}, nil
}

// ReconcileOptions returns the column matcher options.
func (c *Config) ReconcileOptions() reconcile.Options {
	return reconcile.Options{Threshold: c.Reconcile.FuzzyThreshold}
}

// CoerceOptions returns the row coercion options.
func (c *Config) CoerceOptions() coerce.Options {
	return coerce.Options{Workers: c.Process.Workers, RequireRows: c.Process.RequireRows}
}

// LogLevel returns the configured level, info when unparsable.
func (c *Config) LogLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// MaxBodyBytes returns the HTTP request body limit.
func (c *Config) MaxBodyBytes() int64 {
	return int64(c.HTTP.MaxBodyMB) << 20
}
