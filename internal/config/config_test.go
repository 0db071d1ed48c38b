package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "chrome", cfg.Browser.Vendor)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 15*time.Second, cfg.Browser.QuitTimeout)
	assert.Equal(t, "Lockbridge Wallet Notification", cfg.Wallet.NotificationTitle)
	assert.Equal(t, "Walletrun Test Dapp", cfg.Wallet.DappTitle)
	assert.Equal(t, 10*time.Second, cfg.Harness.DefaultTimeout)
	assert.Equal(t, 5*time.Second, cfg.Harness.ProbeTimeout)
	assert.Equal(t, "127.0.0.1:0", cfg.Dapp.Addr)
	assert.False(t, cfg.Store.Enabled)
}

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("extension.path", "/tmp/wallet-ext")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/wallet-ext", cfg.Extension.Path)
}

func TestBrowserVendorFromEnv(t *testing.T) {
	t.Setenv("WALLETRUN_BROWSER", "firefox")

	v := viper.New()
	SetDefaults(v)
	v.Set("extension.firefox_profile", "/tmp/profile")
	v.Set("browser.remote_url", "ws://127.0.0.1:9222/devtools/browser")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "firefox", cfg.Browser.Vendor)
}

func TestValidateVendor(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Browser.Vendor = "safari"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.vendor")
}

func TestValidateFirefoxRequirements(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Browser.Vendor = "firefox"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firefox_profile")

	cfg.Extension.FirefoxProfile = "/tmp/profile"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote_url")

	cfg.Browser.RemoteURL = "ws://127.0.0.1:9222/devtools/browser"
	assert.NoError(t, cfg.Validate())
}

func TestValidateTimeouts(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Harness.DefaultTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Harness.ProbeTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidateStoreURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.url")

	cfg.Store.URL = "postgres://localhost/walletrun"
	assert.NoError(t, cfg.Validate())
}

func TestExpandPaths(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("extension.path", "~/wallet-ext")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.NotContains(t, cfg.Extension.Path, "~", "tilde must be expanded")
	assert.Contains(t, cfg.Extension.Path, "wallet-ext")
}
