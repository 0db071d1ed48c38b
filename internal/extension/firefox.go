package extension

import (
	"context"
	"fmt"
	"time"

	"github.com/lockbridge/walletrun/internal/driver/cdp"
)

const firefoxExtensionScheme = "moz-extension"

// FirefoxLoader attaches to a firefox instance started externally with
// remote debugging enabled and a profile that already has the extension
// installed. Firefox implements only a subset of CDP, so the harness cannot
// install the add-on itself; the profile is the install mechanism.
//
// Known limitation: firefox's devtools report element geometry differently
// enough that a handful of balance/value reads have historically been flaky
// there. The harness applies identical assertions on both vendors; vendor
// divergence is a driver bug to investigate, not an assertion to skip.
type FirefoxLoader struct {
	// Profile is the pre-provisioned profile directory.
	Profile        string
	InstallTimeout time.Duration
}

var _ Loader = (*FirefoxLoader)(nil)

// LaunchArgs is empty: the browser is started externally for this vendor.
func (l *FirefoxLoader) LaunchArgs() []string { return nil }

// InstallExtension resolves the extension's internal UUID from the
// moz-extension:// targets the pre-provisioned profile exposes.
func (l *FirefoxLoader) InstallExtension(ctx context.Context, d *cdp.Driver) (string, error) {
	timeout := l.InstallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for {
		infos, err := d.AllTargets(ctx)
		if err != nil {
			return "", err
		}
		for _, info := range infos {
			if id, ok := extensionIDFromURL(info.URL, firefoxExtensionScheme); ok {
				return id, nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no %s:// target found; is the extension installed in profile %s?", firefoxExtensionScheme, l.Profile)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// ReloadExtension reopens the extension UI, mirroring the chrome recovery
// path.
func (l *FirefoxLoader) ReloadExtension(ctx context.Context, d *cdp.Driver, extensionID string) error {
	if err := d.Navigate(ctx, l.HomeURL(extensionID)); err != nil {
		return fmt.Errorf("failed to reopen extension UI: %w", err)
	}
	return nil
}

func (l *FirefoxLoader) HomeURL(extensionID string) string {
	return fmt.Sprintf("%s://%s/home.html", firefoxExtensionScheme, extensionID)
}
