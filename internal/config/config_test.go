package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "https://sirup.lkpp.go.id", cfg.Portal.BaseURL)
	require.Equal(t, 100000, cfg.Portal.PageSize)
	require.Equal(t, "D1005", cfg.Scrape.OrgGroupID)
	require.Equal(t, "2025", cfg.Scrape.FiscalYear)
	require.Equal(t, 10, cfg.Scrape.UnitConcurrency)
	require.Equal(t, 20, cfg.Scrape.DetailConcurrency)
	require.Equal(t, "scan", cfg.Scrape.Extractor)
	require.Equal(t, 5, cfg.HTTP.MaxRetries)
	require.Equal(t, 300*time.Millisecond, cfg.HTTP.BackoffFactor())
	require.Equal(t, 30*time.Second, cfg.HTTP.Timeout())
	require.False(t, cfg.Auth.Enabled)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
scrape:
  org_group_id: D200
  fiscal_year: "2024"
  unit_concurrency: 4
  extractor: dom
http:
  max_retries: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ADSPEND_SCRAPE_DETAIL_CONCURRENCY", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.Equal(t, "dom", cfg.Scrape.Extractor)
	require.Equal(t, 2, cfg.HTTP.RetryCount())

	params := cfg.RunParams()
	require.Equal(t, "D200", params.OrgGroupID)
	require.Equal(t, "2024", params.FiscalYear)
	require.Equal(t, 4, params.UnitConcurrency)
	require.Equal(t, 7, params.DetailConcurrency)
	require.NoError(t, params.Validate())
}

func TestLoadFlagsOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("kldi", "D1005", "")
	fs.String("tahun", "2025", "")
	fs.Int("workers", 10, "")
	require.NoError(t, fs.Parse([]string{"--kldi", "D77", "--workers", "3"}))

	cfg, err := Load("", WithFlags(fs, map[string]string{
		"kldi":    "scrape.org_group_id",
		"tahun":   "scrape.fiscal_year",
		"workers": "scrape.unit_concurrency",
		"missing": "scrape.extractor",
	}))
	require.NoError(t, err)

	require.Equal(t, "D77", cfg.Scrape.OrgGroupID)
	require.Equal(t, "2025", cfg.Scrape.FiscalYear)
	require.Equal(t, 3, cfg.Scrape.UnitConcurrency)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestRetryCountZeroDisablesRetries(t *testing.T) {
	t.Parallel()

	require.Equal(t, -1, HTTPConfig{MaxRetries: 0}.RetryCount())
	require.Equal(t, 5, HTTPConfig{MaxRetries: 5}.RetryCount())
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Portal: PortalConfig{BaseURL: "https://sirup.lkpp.go.id", PageSize: 100},
		Scrape: ScrapeConfig{
			UnitConcurrency:   10,
			DetailConcurrency: 20,
			Extractor:         "scan",
			QueueDepth:        1,
			RunWorkers:        1,
		},
		HTTP: HTTPConfig{TimeoutSeconds: 10},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth missing api key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "missing base url", mutate: func(c *Config) { c.Portal.BaseURL = "" }, want: "portal.base_url"},
		{name: "invalid page size", mutate: func(c *Config) { c.Portal.PageSize = 0 }, want: "portal.page_size"},
		{name: "unit concurrency too high", mutate: func(c *Config) { c.Scrape.UnitConcurrency = 21 }, want: "scrape.unit_concurrency"},
		{name: "detail concurrency zero", mutate: func(c *Config) { c.Scrape.DetailConcurrency = 0 }, want: "scrape.detail_concurrency"},
		{name: "unknown extractor", mutate: func(c *Config) { c.Scrape.Extractor = "regex" }, want: "scrape.extractor"},
		{name: "invalid queue depth", mutate: func(c *Config) { c.Scrape.QueueDepth = 0 }, want: "scrape.queue_depth"},
		{name: "invalid run workers", mutate: func(c *Config) { c.Scrape.RunWorkers = 0 }, want: "scrape.run_workers"},
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "negative retries", mutate: func(c *Config) { c.HTTP.MaxRetries = -1 }, want: "http.max_retries"},
		{name: "negative rate", mutate: func(c *Config) { c.HTTP.RequestsPerSecond = -2 }, want: "http.requests_per_second"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
