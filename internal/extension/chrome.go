package extension

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lockbridge/walletrun/internal/driver/cdp"
)

const chromeExtensionScheme = "chrome-extension"

// ChromeLoader loads an unpacked extension directory through chromium's
// --load-extension switch and resolves the generated extension ID from the
// extension's CDP targets after launch.
type ChromeLoader struct {
	// Path is the unpacked extension build directory.
	Path           string
	InstallTimeout time.Duration
}

var _ Loader = (*ChromeLoader)(nil)

func (l *ChromeLoader) LaunchArgs() []string {
	return []string{
		"load-extension=" + l.Path,
		"disable-extensions-except=" + l.Path,
	}
}

// InstallExtension waits for a chrome-extension:// target (background page,
// service worker, or UI page) to appear and extracts the extension ID from
// its origin.
func (l *ChromeLoader) InstallExtension(ctx context.Context, d *cdp.Driver) (string, error) {
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
			if id, ok := extensionIDFromURL(info.URL, chromeExtensionScheme); ok {
				return id, nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("extension did not register any %s:// target within %s", chromeExtensionScheme, timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// ReloadExtension reopens the extension's main UI in the active window. The
// navigation restarts the torn-down view and wakes the service worker.
func (l *ChromeLoader) ReloadExtension(ctx context.Context, d *cdp.Driver, extensionID string) error {
	if err := d.Navigate(ctx, l.HomeURL(extensionID)); err != nil {
		return fmt.Errorf("failed to reopen extension UI: %w", err)
	}
	return nil
}

func (l *ChromeLoader) HomeURL(extensionID string) string {
	return fmt.Sprintf("%s://%s/home.html", chromeExtensionScheme, extensionID)
}

func extensionIDFromURL(raw, scheme string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != scheme || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Host), true
}
