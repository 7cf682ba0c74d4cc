// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Portal  PortalConfig  `mapstructure:"portal"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Export  ExportConfig  `mapstructure:"export"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// PortalConfig describes the SIRUP endpoints.
type PortalConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	PageSize  int    `mapstructure:"page_size"`
	MaxPages  int    `mapstructure:"max_pages"`
}

// ScrapeConfig holds run defaults and server-mode capacity.
type ScrapeConfig struct {
	OrgGroupID        string `mapstructure:"org_group_id"`
	FiscalYear        string `mapstructure:"fiscal_year"`
	UnitConcurrency   int    `mapstructure:"unit_concurrency"`
	DetailConcurrency int    `mapstructure:"detail_concurrency"`
	Extractor         string `mapstructure:"extractor"`
	QueueDepth        int    `mapstructure:"queue_depth"`
	RunWorkers        int    `mapstructure:"run_workers"`
}

// HTTPConfig configures the portal client.
type HTTPConfig struct {
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	MaxRetries          int     `mapstructure:"max_retries"`
	BackoffFactorMs     int     `mapstructure:"backoff_factor_ms"`
	MaxBackoffMs        int     `mapstructure:"max_backoff_ms"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"`
	Burst               int     `mapstructure:"burst"`
	MaxIdleConnsPerHost int     `mapstructure:"max_idle_conns_per_host"`
}

// ExportConfig controls report files written by the CLI.
type ExportConfig struct {
	Dir  string `mapstructure:"dir"`
	CSV  bool   `mapstructure:"csv"`
	XLSX bool   `mapstructure:"xlsx"`
	// ArtifactDir persists API result downloads on disk; empty keeps them
	// in memory.
	ArtifactDir string `mapstructure:"artifact_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Option adjusts the Viper instance before unmarshalling.
type Option func(*viper.Viper) error

// WithFlags binds command-line flags onto config keys; bindings maps flag
// name to key. Only flags the user set override file and env values.
func WithFlags(fs *pflag.FlagSet, bindings map[string]string) Option {
	return func(v *viper.Viper) error {
		if fs == nil {
			return nil
		}
		for name, key := range bindings {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
		return nil
	}
}

// Load builds a Config from defaults, an optional file, the environment
// (ADSPEND_ prefix), and bound flags, in increasing precedence.
func Load(path string, opts ...Option) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ADSPEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 30)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("portal.base_url", "https://sirup.lkpp.go.id")
	v.SetDefault("portal.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("portal.page_size", 100000)
	v.SetDefault("portal.max_pages", 50)
	v.SetDefault("scrape.org_group_id", "D1005")
	v.SetDefault("scrape.fiscal_year", "2025")
	v.SetDefault("scrape.unit_concurrency", 10)
	v.SetDefault("scrape.detail_concurrency", 20)
	v.SetDefault("scrape.extractor", "scan")
	v.SetDefault("scrape.queue_depth", 16)
	v.SetDefault("scrape.run_workers", 1)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 5)
	v.SetDefault("http.backoff_factor_ms", 300)
	v.SetDefault("http.max_backoff_ms", 120000)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.max_idle_conns_per_host", 64)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.csv", false)
	v.SetDefault("export.xlsx", false)
	v.SetDefault("export.artifact_dir", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	if c.Portal.PageSize <= 0 {
		return fmt.Errorf("portal.page_size must be > 0")
	}
	if c.Portal.MaxPages < 0 {
		return fmt.Errorf("portal.max_pages must be >= 0")
	}
	if c.Scrape.UnitConcurrency < 1 || c.Scrape.UnitConcurrency > procurement.MaxUnitConcurrency {
		return fmt.Errorf("scrape.unit_concurrency must be between 1 and %d", procurement.MaxUnitConcurrency)
	}
	if c.Scrape.DetailConcurrency < 1 || c.Scrape.DetailConcurrency > procurement.MaxDetailConcurrency {
		return fmt.Errorf("scrape.detail_concurrency must be between 1 and %d", procurement.MaxDetailConcurrency)
	}
	switch strings.ToLower(c.Scrape.Extractor) {
	case "scan", "dom":
	default:
		return fmt.Errorf("scrape.extractor must be scan or dom")
	}
	if c.Scrape.QueueDepth <= 0 {
		return fmt.Errorf("scrape.queue_depth must be > 0")
	}
	if c.Scrape.RunWorkers <= 0 {
		return fmt.Errorf("scrape.run_workers must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	return nil
}

// RunParams returns the configured run defaults.
func (c Config) RunParams() procurement.RunParams {
	return procurement.RunParams{
		OrgGroupID:        c.Scrape.OrgGroupID,
		FiscalYear:        c.Scrape.FiscalYear,
		UnitConcurrency:   c.Scrape.UnitConcurrency,
		DetailConcurrency: c.Scrape.DetailConcurrency,
	}
}

// Timeout returns the per-request portal timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffFactor returns the base retry delay.
func (c HTTPConfig) BackoffFactor() time.Duration {
	return time.Duration(c.BackoffFactorMs) * time.Millisecond
}

// MaxBackoff returns the retry delay cap.
func (c HTTPConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// RetryCount maps max_retries onto the retry policy, where zero means
// "use the default" and a negative value disables retries.
func (c HTTPConfig) RetryCount() int {
	if c.MaxRetries == 0 {
		return -1
	}
	return c.MaxRetries
}
