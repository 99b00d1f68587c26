package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/dshills/surveyrecon/internal/convention"
	"github.com/dshills/surveyrecon/internal/schema"
)

func TestLoad_Missing(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) error: %v", path, err)
		}
		if cfg.Reconcile.FuzzyThreshold != 0.7 || cfg.Schema.Defaults.Version != "1.0" || cfg.HTTP.Addr != ":8080" {
			t.Errorf("Load(%q) = %+v, want defaults", path, cfg)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("defaults must validate: %v", err)
		}
	}
}

func TestLoad_Fixture(t *testing.T) {
	cfg, err := Load("../../testdata/config.yaml")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Schema.Defaults.Title != "Enquête mobilité" {
		t.Errorf("title = %q", cfg.Schema.Defaults.Title)
	}
	if cfg.Schema.Defaults.Version != "1.0" {
		t.Errorf("unset keys must keep their defaults, version = %q", cfg.Schema.Defaults.Version)
	}
	if cfg.Reconcile.FuzzyThreshold != 0.75 || cfg.Process.Workers != 2 || cfg.Report.MaxMessages != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogLevel() != zapcore.WarnLevel {
		t.Errorf("LogLevel = %v", cfg.LogLevel())
	}
	if got := cfg.ReconcileOptions().Threshold; got != 0.75 {
		t.Errorf("ReconcileOptions threshold = %v", got)
	}
	if got := cfg.CoerceOptions().Workers; got != 2 {
		t.Errorf("CoerceOptions workers = %v", got)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("reconcile: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.HasPrefix(err.Error(), "config: parse bad.yaml") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SURVEYRECON_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("SURVEYRECON_LOG_LEVEL", "debug")
	t.Setenv("SURVEYRECON_WORKERS", "3")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9999" || cfg.Log.Level != "debug" || cfg.Process.Workers != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold zero", func(c *Config) { c.Reconcile.FuzzyThreshold = 0 }, "fuzzy_threshold"},
		{"threshold one", func(c *Config) { c.Reconcile.FuzzyThreshold = 1 }, "fuzzy_threshold"},
		{"workers", func(c *Config) { c.Process.Workers = -1 }, "process.workers"},
		{"messages", func(c *Config) { c.Report.MaxMessages = -2 }, "max_messages"},
		{"body", func(c *Config) { c.HTTP.MaxBodyMB = -1 }, "max_body_mb"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"table", func(c *Config) { c.Schema.OverrideTable = "mystery" }, "unknown override table"},
		{"override", func(c *Config) {
			c.Schema.Overrides = []convention.Override{{Name: "empty", Type: schema.TypeText}}
		}, "has no tokens"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Errorf("Validate = %v, want error containing %q", err, c.want)
			}
		})
	}
}

func TestNormalizeOptions(t *testing.T) {
	cfg := Default()
	cfg.Schema.OverrideTable = "none"
	opts, err := cfg.NormalizeOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Overrides == nil || len(opts.Overrides) != 0 {
		t.Errorf("none table must disable overrides, got %v", opts.Overrides)
	}

	cfg.Schema.OverrideTable = ""
	cfg.Schema.Overrides = []convention.Override{{Name: "age", Tokens: []string{"_AGE"}, Type: schema.TypeNumeric, Format: schema.FormatCount}}
	opts, err = cfg.NormalizeOptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Overrides) < 2 || opts.Overrides[0].Name != "age" {
		t.Errorf("extra overrides must come first: %v", opts.Overrides)
	}
}

func TestMaxBodyBytes(t *testing.T) {
	cfg := Default()
	if cfg.MaxBodyBytes() != 20<<20 {
		t.Errorf("MaxBodyBytes = %d", cfg.MaxBodyBytes())
	}
}
