// Package config handles configuration loading for dealscope.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/seenimoa/dealscope/internal/metrics"
)

// Config represents the complete application configuration.
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis" json:"analysis"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"  json:"storage"`
	Report   ReportConfig   `mapstructure:"report"   yaml:"report"   json:"report"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"      json:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"  json:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-" json:"config_file,omitempty"`
}

// AnalysisConfig holds analysis engine settings.
type AnalysisConfig struct {
	HoldingPeriod      int     `mapstructure:"holding_period"       yaml:"holding_period"       json:"holding_period"`
	Profile            string  `mapstructure:"profile"              yaml:"profile"              json:"profile"` // "cash_flow", "balanced", "appreciation"
	DiscountRate       float64 `mapstructure:"discount_rate"        yaml:"discount_rate"        json:"discount_rate"`
	SensitivitySteps   int     `mapstructure:"sensitivity_steps"    yaml:"sensitivity_steps"    json:"sensitivity_steps"`
	Concurrency        int     `mapstructure:"concurrency"          yaml:"concurrency"          json:"concurrency"`
	CacheTTL           int     `mapstructure:"cache_ttl"            yaml:"cache_ttl"            json:"cache_ttl"` // seconds, 0 disables
	StressMaxVacancy   float64 `mapstructure:"stress_max_vacancy"   yaml:"stress_max_vacancy"   json:"stress_max_vacancy"`
	StressMaxExpenseUp float64 `mapstructure:"stress_max_expense_increase" yaml:"stress_max_expense_increase" json:"stress_max_expense_increase"`
}

// Options converts the analysis settings into metric options.
func (a AnalysisConfig) Options() metrics.Options {
	return metrics.Options{HoldingPeriod: a.HoldingPeriod, Profile: a.Profile, DiscountRate: metrics.Rate(a.DiscountRate)}
}

// StorageConfig selects where deals are kept.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"` // "file" or "memory"
	Dir     string `mapstructure:"dir"     yaml:"dir"     json:"dir"`
}

// ReportConfig holds report rendering settings.
type ReportConfig struct {
	OutputDir   string `mapstructure:"output_dir"   yaml:"output_dir"   json:"output_dir"`
	Author      string `mapstructure:"author"       yaml:"author"       json:"author"`
	PageSize    string `mapstructure:"page_size"    yaml:"page_size"    json:"page_size"`   // "A4", "Letter"
	Orientation string `mapstructure:"orientation"  yaml:"orientation"  json:"orientation"` // "portrait" or "landscape"
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
	AuthToken   string   `mapstructure:"auth_token"   yaml:"auth_token"   json:"-"` // bearer token for write routes; empty disables
}

// Addr is the listen address.
func (a APIConfig) Addr() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.dealscope/config.yaml (home directory)
//  3. /etc/dealscope/config.yaml (system)
//
// Environment variables override config file values.
// Format: DEALSCOPE_<SECTION>_<KEY>, e.g., DEALSCOPE_ANALYSIS_PROFILE
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".dealscope"))
	v.AddConfigPath("/etc/dealscope")

	v.SetEnvPrefix("DEALSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.File = v.ConfigFileUsed()
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("DEALSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.File = v.ConfigFileUsed()
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Analysis defaults
	v.SetDefault("analysis.holding_period", 10)
	v.SetDefault("analysis.profile", metrics.DefaultProfile)
	v.SetDefault("analysis.discount_rate", metrics.DefaultDiscountRate)
	v.SetDefault("analysis.sensitivity_steps", 10)
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.cache_ttl", 300) // 5 minutes
	v.SetDefault("analysis.stress_max_vacancy", 20.0)
	v.SetDefault("analysis.stress_max_expense_increase", 10.0)

	// Storage defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", "./deals")

	// Report defaults
	v.SetDefault("report.output_dir", "./reports")
	v.SetDefault("report.author", "dealscope")
	v.SetDefault("report.page_size", "A4")
	v.SetDefault("report.orientation", "portrait")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// AutomaticEnv only covers keys viper already knows about.
func overrideFromEnv(cfg *Config) {
	if tok := os.Getenv("DEALSCOPE_API_AUTH_TOKEN"); tok != "" {
		cfg.API.AuthToken = tok
	}
}

// Validate reports every setting outside its accepted range.
func (c *Config) Validate() error {
	var problems []string
	a := c.Analysis
	if a.HoldingPeriod < 1 || a.HoldingPeriod > 40 {
		problems = append(problems, fmt.Sprintf("analysis.holding_period %d outside [1, 40]", a.HoldingPeriod))
	}
	if _, err := metrics.StrategyByName(a.Profile); err != nil {
		problems = append(problems, "analysis.profile: "+err.Error())
	}
	if a.DiscountRate <= -1 || a.DiscountRate > 1 {
		problems = append(problems, fmt.Sprintf("analysis.discount_rate %.4f outside (-1, 1]", a.DiscountRate))
	}
	if a.SensitivitySteps < 2 || a.SensitivitySteps > 50 {
		problems = append(problems, fmt.Sprintf("analysis.sensitivity_steps %d outside [2, 50]", a.SensitivitySteps))
	}
	if a.Concurrency < 1 {
		problems = append(problems, "analysis.concurrency must be at least 1")
	}
	switch c.Storage.Backend {
	case "file", "memory":
	default:
		problems = append(problems, fmt.Sprintf("storage.backend %q: want file or memory", c.Storage.Backend))
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		problems = append(problems, fmt.Sprintf("api.port %d outside [1, 65535]", c.API.Port))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════
// Logging
// ════════════════════════════════════════════════════════════════════

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level %q: want debug, info, warn or error", s)
}

// NewLogger builds a text or JSON logger at the configured level and
// installs it as the slog default. Unknown levels fall back to info.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	level, _ := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
