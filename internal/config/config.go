// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Wait() WaitConfig
	Target() TargetConfig
	Report() ReportConfig
	Suite() SuiteConfig
	Database() DatabaseConfig

	// Browser Setters
	SetBrowserHeadless(bool)

	// Target Setters
	SetTargetFormURL(string)

	// Report Setters
	SetReportDir(string)
	SetReportFormat(string)

	// Suite Setters
	SetSuiteConcurrency(int)
	SetSuiteScenarios([]string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	WaitCfg     WaitConfig     `mapstructure:"wait" yaml:"wait"`
	TargetCfg   TargetConfig   `mapstructure:"target" yaml:"target"`
	ReportCfg   ReportConfig   `mapstructure:"report" yaml:"report"`
	SuiteCfg    SuiteConfig    `mapstructure:"suite" yaml:"suite"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Wait() WaitConfig         { return c.WaitCfg }
func (c *Config) Target() TargetConfig     { return c.TargetCfg }
func (c *Config) Report() ReportConfig     { return c.ReportCfg }
func (c *Config) Suite() SuiteConfig       { return c.SuiteCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)      { c.BrowserCfg.Headless = b }
func (c *Config) SetTargetFormURL(u string)      { c.TargetCfg.FormURL = u }
func (c *Config) SetReportDir(d string)          { c.ReportCfg.Dir = d }
func (c *Config) SetReportFormat(f string)       { c.ReportCfg.Format = f }
func (c *Config) SetSuiteConcurrency(n int)      { c.SuiteCfg.Concurrency = n }
func (c *Config) SetSuiteScenarios(ids []string) { c.SuiteCfg.Scenarios = ids }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the browser instances backing each session.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// ExecPath overrides chromedp's browser lookup. Empty means auto-detect.
	ExecPath        string        `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Stealth         bool          `mapstructure:"stealth" yaml:"stealth"`
	Debug           bool          `mapstructure:"debug" yaml:"debug"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	WindowWidth     int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int           `mapstructure:"window_height" yaml:"window_height"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	CloseTimeout    time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
}

// WaitConfig bounds every element and dialog wait.
type WaitConfig struct {
	DefaultTimeout    time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ScreenshotTimeout time.Duration `mapstructure:"screenshot_timeout" yaml:"screenshot_timeout"`
}

// TargetConfig describes the form under test.
type TargetConfig struct {
	FormURL       string `mapstructure:"form_url" yaml:"form_url"`
	ExpectedAlert string `mapstructure:"expected_alert" yaml:"expected_alert"`
}

// ReportConfig controls where and how run results are written.
type ReportConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SuiteConfig selects and schedules scenarios.
type SuiteConfig struct {
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	Scenarios   []string `mapstructure:"scenarios" yaml:"scenarios"`
	// ScenarioTimeout caps a single scenario, session startup included.
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout" yaml:"scenario_timeout"`
}

// DatabaseConfig holds the database connection details. An empty URL
// disables run history.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.close_timeout", "10s")

	// -- Wait --
	v.SetDefault("wait.default_timeout", "10s")
	v.SetDefault("wait.poll_interval", "100ms")
	v.SetDefault("wait.screenshot_timeout", "5s")

	// -- Target --
	v.SetDefault("target.form_url", "https://practice-automation.com/form-fields/")
	v.SetDefault("target.expected_alert", "Message received!")

	// -- Report --
	v.SetDefault("report.dir", "reports")
	v.SetDefault("report.format", "json")

	// -- Suite --
	v.SetDefault("suite.concurrency", 2)
	v.SetDefault("suite.scenario_timeout", "2m")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials belong in the environment, not in config.yaml.
	_ = v.BindEnv("database.url", "FORMPROBE_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in every filesystem path setting.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.ReportCfg.Dir, &c.LoggerCfg.LogFile, &c.BrowserCfg.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.WaitCfg.DefaultTimeout <= 0 {
		return fmt.Errorf("wait.default_timeout must be a positive duration")
	}
	if c.WaitCfg.PollInterval <= 0 {
		return fmt.Errorf("wait.poll_interval must be a positive duration")
	}
	if c.WaitCfg.PollInterval > c.WaitCfg.DefaultTimeout {
		return fmt.Errorf("wait.poll_interval must not exceed wait.default_timeout")
	}
	if c.SuiteCfg.Concurrency <= 0 {
		return fmt.Errorf("suite.concurrency must be a positive integer")
	}
	if strings.TrimSpace(c.TargetCfg.FormURL) == "" {
		return fmt.Errorf("target.form_url is a required configuration field")
	}
	switch strings.ToLower(c.ReportCfg.Format) {
	case "json", "junit":
	default:
		return fmt.Errorf("report.format must be one of json, junit (got %q)", c.ReportCfg.Format)
	}
	return nil
}
