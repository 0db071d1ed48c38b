// Package extension provides the vendor-specific install/reload entry points
// for the wallet extension under test.
package extension

import (
	"context"
	"fmt"

	"github.com/lockbridge/walletrun/internal/config"
	"github.com/lockbridge/walletrun/internal/driver/cdp"
)

// Loader is the capability the session consumes to get the extension into
// the browser and to recover it after a lifecycle reset.
type Loader interface {
	// LaunchArgs contributes browser switches that must be present at launch
	// for the extension to load. May be empty for vendors that install into
	// a pre-provisioned profile instead.
	LaunchArgs() []string
	// InstallExtension resolves the installed extension's identifier once
	// the browser is up. The path semantics are vendor specific.
	InstallExtension(ctx context.Context, d *cdp.Driver) (extensionID string, err error)
	// ReloadExtension reopens the extension's UI entry point. This is the
	// deterministic recovery action the recovery strategy triggers.
	ReloadExtension(ctx context.Context, d *cdp.Driver, extensionID string) error
	// HomeURL is the extension's main UI page for the given identifier.
	HomeURL(extensionID string) string
}

// NewLoader selects the loader implementation for the configured vendor.
func NewLoader(cfg config.Config) (Loader, error) {
	switch cfg.Browser.Vendor {
	case "chrome":
		if cfg.Extension.Path == "" {
			return nil, fmt.Errorf("extension.path is required for the chrome vendor")
		}
		return &ChromeLoader{
			Path:           cfg.Extension.Path,
			InstallTimeout: cfg.Extension.InstallTimeout,
		}, nil
	case "firefox":
		return &FirefoxLoader{
			Profile:        cfg.Extension.FirefoxProfile,
			InstallTimeout: cfg.Extension.InstallTimeout,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported browser vendor %q", cfg.Browser.Vendor)
	}
}
