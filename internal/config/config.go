// Package config holds the harness configuration, loaded from config.yaml,
// environment variables (WALLETRUN_ prefix) and CLI flags via viper.
package config

import (
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Extension ExtensionConfig `mapstructure:"extension" yaml:"extension"`
	Wallet    WalletConfig    `mapstructure:"wallet" yaml:"wallet"`
	Harness   HarnessConfig   `mapstructure:"harness" yaml:"harness"`
	Dapp      DappConfig      `mapstructure:"dapp" yaml:"dapp"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
}

// LoggerConfig configures the zap logger and file rotation.
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

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects and tunes the browser under automation.
type BrowserConfig struct {
	// Vendor is "chrome" or "firefox"; it gates which extension loader the
	// session uses. Bound to the WALLETRUN_BROWSER environment variable.
	Vendor      string        `mapstructure:"vendor" yaml:"vendor"`
	Headless    bool          `mapstructure:"headless" yaml:"headless"`
	UserDataDir string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args        []string      `mapstructure:"args" yaml:"args"`
	DebugLog    string        `mapstructure:"debug_log" yaml:"debug_log"`
	// RemoteURL attaches to an externally started browser's devtools
	// endpoint; required for the firefox vendor.
	RemoteURL   string        `mapstructure:"remote_url" yaml:"remote_url"`
	QuitTimeout time.Duration `mapstructure:"quit_timeout" yaml:"quit_timeout"`
}

// ExtensionConfig locates the wallet extension build under test.
type ExtensionConfig struct {
	// Path is the unpacked extension directory (chrome) or the XPI (firefox).
	Path string `mapstructure:"path" yaml:"path"`
	// FirefoxProfile is a pre-provisioned profile directory with the
	// extension installed; required for the firefox vendor.
	FirefoxProfile string `mapstructure:"firefox_profile" yaml:"firefox_profile"`
	// InstallTimeout bounds the wait for the extension target to appear.
	InstallTimeout time.Duration `mapstructure:"install_timeout" yaml:"install_timeout"`
}

// WalletConfig holds the wallet-product signatures the registry classifies
// windows by, and the credentials scenarios onboard with.
type WalletConfig struct {
	NotificationTitle string `mapstructure:"notification_title" yaml:"notification_title"`
	DappTitle         string `mapstructure:"dapp_title" yaml:"dapp_title"`
	Password          string `mapstructure:"password" yaml:"password"`
}

// HarnessConfig tunes the orchestration engine.
type HarnessConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	ArtifactsDir   string        `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
}

// DappConfig configures the local third-party page server.
type DappConfig struct {
	// Addr is the listen address; ":0" picks a free port.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// StoreConfig configures optional Postgres persistence of run results.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "walletrun")
	v.SetDefault("logger.log_file", "walletrun.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Browser --
	v.SetDefault("browser.vendor", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.quit_timeout", "15s")

	// -- Extension --
	v.SetDefault("extension.install_timeout", "30s")

	// -- Wallet --
	v.SetDefault("wallet.notification_title", "Lockbridge Wallet Notification")
	v.SetDefault("wallet.dapp_title", "Walletrun Test Dapp")
	v.SetDefault("wallet.password", "correct horse battery staple")

	// -- Harness --
	v.SetDefault("harness.default_timeout", "10s")
	v.SetDefault("harness.probe_timeout", "5s")
	v.SetDefault("harness.artifacts_dir", "artifacts")

	// -- Dapp --
	v.SetDefault("dapp.addr", "127.0.0.1:0")

	// -- Store --
	v.SetDefault("store.enabled", false)
}

// NewDefaultConfig returns a Config populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper unmarshals, expands and validates a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// The short env var is the documented switch for CI matrices.
	_ = v.BindEnv("browser.vendor", "WALLETRUN_BROWSER")
	_ = v.BindEnv("store.url", "WALLETRUN_STORE_URL")

	var cfg Config
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

// expandPaths resolves ~ in user-supplied paths.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Extension.Path,
		&c.Extension.FirefoxProfile,
		&c.Browser.UserDataDir,
		&c.Harness.ArtifactsDir,
		&c.Logger.LogFile,
	} {
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

// Validate checks required fields and sane values.
func (c *Config) Validate() error {
	switch c.Browser.Vendor {
	case "chrome", "firefox":
	default:
		return fmt.Errorf("browser.vendor must be \"chrome\" or \"firefox\", got %q", c.Browser.Vendor)
	}
	if c.Browser.Vendor == "firefox" {
		if c.Extension.FirefoxProfile == "" {
			return fmt.Errorf("extension.firefox_profile is required for the firefox vendor")
		}
		if c.Browser.RemoteURL == "" {
			return fmt.Errorf("browser.remote_url is required for the firefox vendor")
		}
	}
	if c.Harness.DefaultTimeout <= 0 {
		return fmt.Errorf("harness.default_timeout must be a positive duration")
	}
	if c.Harness.ProbeTimeout <= 0 {
		return fmt.Errorf("harness.probe_timeout must be a positive duration")
	}
	if c.Store.Enabled && c.Store.URL == "" {
		return fmt.Errorf("store.url is required when store.enabled is true")
	}
	return nil
}
