package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	t.Setenv("DEALSCOPE_API_AUTH_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Analysis defaults
	if cfg.Analysis.HoldingPeriod != 10 {
		t.Errorf("Analysis.HoldingPeriod: got %d, want 10", cfg.Analysis.HoldingPeriod)
	}
	if cfg.Analysis.Profile != "balanced" {
		t.Errorf("Analysis.Profile: got %q, want %q", cfg.Analysis.Profile, "balanced")
	}
	if cfg.Analysis.DiscountRate != 0.10 {
		t.Errorf("Analysis.DiscountRate: got %f, want 0.10", cfg.Analysis.DiscountRate)
	}
	if cfg.Analysis.SensitivitySteps != 10 {
		t.Errorf("Analysis.SensitivitySteps: got %d, want 10", cfg.Analysis.SensitivitySteps)
	}
	if cfg.Analysis.Concurrency != 4 {
		t.Errorf("Analysis.Concurrency: got %d, want 4", cfg.Analysis.Concurrency)
	}
	if cfg.Analysis.CacheTTL != 300 {
		t.Errorf("Analysis.CacheTTL: got %d, want 300", cfg.Analysis.CacheTTL)
	}
	if cfg.Analysis.StressMaxVacancy != 20 || cfg.Analysis.StressMaxExpenseUp != 10 {
		t.Errorf("stress limits: got %f / %f", cfg.Analysis.StressMaxVacancy, cfg.Analysis.StressMaxExpenseUp)
	}

	// Storage defaults
	if cfg.Storage.Backend != "file" || cfg.Storage.Dir != "./deals" {
		t.Errorf("Storage: got %+v", cfg.Storage)
	}

	// Report defaults
	if cfg.Report.PageSize != "A4" || cfg.Report.Orientation != "portrait" {
		t.Errorf("Report: got %+v", cfg.Report)
	}

	// API defaults
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host: got %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if len(cfg.API.CORSOrigins) != 1 || cfg.API.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("API.CORSOrigins: got %v", cfg.API.CORSOrigins)
	}
	if cfg.API.Addr() != "0.0.0.0:8080" {
		t.Errorf("API.Addr: got %q", cfg.API.Addr())
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "text")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	opts := cfg.Analysis.Options()
	if opts.HoldingPeriod != 10 || opts.Profile != "balanced" || opts.Discount() != 0.10 {
		t.Errorf("Options: got %+v", opts)
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
analysis:
  holding_period: 7
  profile: "cash_flow"
  discount_rate: 0.08
storage:
  backend: "memory"
api:
  port: 9090
  auth_token: "file-token-1234567"
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("DEALSCOPE_API_AUTH_TOKEN", "")

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Analysis.HoldingPeriod != 7 {
		t.Errorf("Analysis.HoldingPeriod: got %d, want 7", cfg.Analysis.HoldingPeriod)
	}
	if cfg.Analysis.Profile != "cash_flow" {
		t.Errorf("Analysis.Profile: got %q", cfg.Analysis.Profile)
	}
	if cfg.Analysis.DiscountRate != 0.08 {
		t.Errorf("Analysis.DiscountRate: got %f", cfg.Analysis.DiscountRate)
	}
	// Unset keys keep their defaults.
	if cfg.Analysis.SensitivitySteps != 10 {
		t.Errorf("Analysis.SensitivitySteps: got %d, want default 10", cfg.Analysis.SensitivitySteps)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend: got %q", cfg.Storage.Backend)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.API.AuthToken != "file-token-1234567" {
		t.Errorf("API.AuthToken: got %q", cfg.API.AuthToken)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
	if cfg.File != cfgPath {
		t.Errorf("File: got %q, want %q", cfg.File, cfgPath)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(cfgPath, []byte("analysis:\n  profile: cash_flow\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEALSCOPE_ANALYSIS_PROFILE", "appreciation")
	t.Setenv("DEALSCOPE_API_AUTH_TOKEN", "env-token-abcdefg")

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.Profile != "appreciation" {
		t.Errorf("Analysis.Profile: got %q, want env value", cfg.Analysis.Profile)
	}
	if cfg.API.AuthToken != "env-token-abcdefg" {
		t.Errorf("API.AuthToken: got %q", cfg.API.AuthToken)
	}
}

// ── Validate ──

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Analysis: AnalysisConfig{HoldingPeriod: 10, Profile: "balanced", DiscountRate: 0.1, SensitivitySteps: 10, Concurrency: 4},
			Storage:  StorageConfig{Backend: "file", Dir: "./deals"},
			API:      APIConfig{Host: "0.0.0.0", Port: 8080},
			Logging:  LoggingConfig{Level: "info", Format: "text"},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"holding", func(c *Config) { c.Analysis.HoldingPeriod = 0 }, "holding_period"},
		{"profile", func(c *Config) { c.Analysis.Profile = "flipper" }, "analysis.profile"},
		{"discount", func(c *Config) { c.Analysis.DiscountRate = -1 }, "discount_rate"},
		{"steps", func(c *Config) { c.Analysis.SensitivitySteps = 1 }, "sensitivity_steps"},
		{"concurrency", func(c *Config) { c.Analysis.Concurrency = 0 }, "concurrency"},
		{"backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"port", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config: %v", err)
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("got %v, want mention of %q", err, tc.want)
			}
		})
	}
}

// ── NewLogger ──

func TestNewLoggerJSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "deal", "d-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["deal"] != "d-1" || rec["level"] != "WARN" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewLoggerTextIsDefault(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	NewLogger(LoggingConfig{Level: "debug"}, &buf)
	slog.Debug("calc", "noi", 14496)
	if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "noi=14496") {
		t.Errorf("text output = %q", buf.String())
	}
}

// ── CheckSecrets / maskSecret ──

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
		{"tok-abcdef1234567890xyz", "tok...xyz"},
	}
	for _, tc := range tests {
		if got := maskSecret(tc.input); got != tc.want {
			t.Errorf("maskSecret(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestCheckSecrets(t *testing.T) {
	t.Setenv("DEALSCOPE_API_AUTH_TOKEN", "")
	statuses := CheckSecrets(&Config{})
	if len(statuses) != 1 || statuses[0].IsSet || statuses[0].Source != SecretSourceNone {
		t.Errorf("empty config: got %+v", statuses)
	}

	statuses = CheckSecrets(&Config{API: APIConfig{AuthToken: "from-config-file"}})
	if statuses[0].Source != SecretSourceConfig || statuses[0].Masked != "fro...ile" {
		t.Errorf("config token: got %+v", statuses[0])
	}

	t.Setenv("DEALSCOPE_API_AUTH_TOKEN", "from-env-variable")
	statuses = CheckSecrets(&Config{API: APIConfig{AuthToken: "from-env-variable"}})
	if statuses[0].Source != SecretSourceEnv {
		t.Errorf("env token: got %+v", statuses[0])
	}
}

// ── homeDir ──

func TestHomeDirReturnsNonEmpty(t *testing.T) {
	if homeDir() == "" {
		t.Error("homeDir() should not return empty string")
	}
}
