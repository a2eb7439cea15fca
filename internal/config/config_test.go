// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.True(t, cfg.Browser().Headless)
	assert.True(t, cfg.Browser().Stealth)
	assert.Equal(t, 10*time.Second, cfg.Wait().DefaultTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Wait().PollInterval)
	assert.Equal(t, "https://practice-automation.com/form-fields/", cfg.Target().FormURL)
	assert.Equal(t, "Message received!", cfg.Target().ExpectedAlert)
	assert.Equal(t, "json", cfg.Report().Format)
	assert.Equal(t, 2, cfg.Suite().Concurrency)
	assert.Empty(t, cfg.Database().URL)
	assert.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero default timeout", func(c *Config) { c.WaitCfg.DefaultTimeout = 0 }, "wait.default_timeout must be a positive duration"},
		{"zero poll interval", func(c *Config) { c.WaitCfg.PollInterval = 0 }, "wait.poll_interval must be a positive duration"},
		{"poll exceeds timeout", func(c *Config) { c.WaitCfg.PollInterval = time.Minute }, "must not exceed wait.default_timeout"},
		{"non-positive concurrency", func(c *Config) { c.SuiteCfg.Concurrency = -1 }, "suite.concurrency must be a positive integer"},
		{"missing form url", func(c *Config) { c.TargetCfg.FormURL = "  " }, "target.form_url is a required configuration field"},
		{"unknown report format", func(c *Config) { c.ReportCfg.Format = "html" }, "report.format must be one of json, junit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("junit accepted case-insensitively", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.SetReportFormat("JUnit")
		assert.NoError(t, cfg.Validate())
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
wait:
  default_timeout: 3s
  poll_interval: 50ms
suite:
  concurrency: 4
  scenarios: ["successful_submission"]
browser:
  args: ["--lang=en-US"]
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 3*time.Second, cfg.Wait().DefaultTimeout)
		assert.Equal(t, 50*time.Millisecond, cfg.Wait().PollInterval)
		assert.Equal(t, 4, cfg.Suite().Concurrency)
		assert.Equal(t, []string{"successful_submission"}, cfg.Suite().Scenarios)
		assert.Equal(t, []string{"--lang=en-US"}, cfg.Browser().Args)
		// Defaults survive alongside file values.
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("suite.concurrency", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "suite.concurrency must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
database:
  url: "postgres://configfile/db"
`)))

		testDBURL := "postgres://envvar/db"
		t.Setenv("FORMPROBE_DATABASE_URL", testDBURL)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, testDBURL, cfg.Database().URL)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		home, err := homedir.Dir()
		if err != nil {
			t.Skipf("no home directory available: %v", err)
		}

		v := viper.New()
		SetDefaults(v)
		v.Set("report.dir", "~/formprobe-reports")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "formprobe-reports"), cfg.Report().Dir)
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserHeadless(false)
	cfg.SetTargetFormURL("http://127.0.0.1:8080/form-fields/")
	cfg.SetReportDir("/tmp/out")
	cfg.SetSuiteConcurrency(1)
	cfg.SetSuiteScenarios([]string{"incomplete_submission"})

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, "http://127.0.0.1:8080/form-fields/", cfg.Target().FormURL)
	assert.Equal(t, "/tmp/out", cfg.Report().Dir)
	assert.Equal(t, 1, cfg.Suite().Concurrency)
	assert.Equal(t, []string{"incomplete_submission"}, cfg.Suite().Scenarios)
}
