// Package session owns the lifecycle of one harness run: browser process,
// extension install, window registry, diagnostics, and the local test dapp.
package session

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lockbridge/walletrun/internal/config"
	"github.com/lockbridge/walletrun/internal/dapp"
	"github.com/lockbridge/walletrun/internal/diagnostics"
	"github.com/lockbridge/walletrun/internal/driver"
	"github.com/lockbridge/walletrun/internal/driver/cdp"
	"github.com/lockbridge/walletrun/internal/extension"
	"github.com/lockbridge/walletrun/internal/harness"
)

// Session wires the browser, extension, registry, and diagnostics for a run.
// All fields are ready after Start returns; Close tears them down in reverse.
type Session struct {
	cfg    config.Config
	runID  string
	logger *zap.Logger

	Driver   *cdp.Driver
	Loader   extension.Loader
	Registry *harness.Registry

	Console   *diagnostics.ConsoleCollector
	Collector *diagnostics.Collector

	Dapp *dapp.Server

	extensionID string
	logFollower *diagnostics.LogFollower
	closed      bool
}

// New prepares a session; nothing is launched until Start.
func New(cfg config.Config, runID string, logger *zap.Logger) *Session {
	console := diagnostics.NewConsoleCollector(logger)
	return &Session{
		cfg:       cfg,
		runID:     runID,
		logger:    logger.Named("session"),
		Console:   console,
		Collector: diagnostics.NewCollector(console, cfg.Harness.ArtifactsDir, logger),
		Dapp:      dapp.NewServer(cfg.Dapp.Addr),
	}
}

// Start launches everything in dependency order: dapp server, browser with
// the loader's launch switches, extension install, then registry setup with
// the resolved extension origin.
func (s *Session) Start(ctx context.Context) error {
	loader, err := extension.NewLoader(s.cfg)
	if err != nil {
		return err
	}
	s.Loader = loader

	if err := s.Dapp.Start(); err != nil {
		return err
	}

	d, err := cdp.New(ctx, cdp.Options{
		Headless:    s.cfg.Browser.Headless,
		UserDataDir: s.cfg.Browser.UserDataDir,
		Args:        append(loader.LaunchArgs(), s.cfg.Browser.Args...),
		RemoteURL:   s.cfg.Browser.RemoteURL,
	}, s.logger)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Dapp.Stop(stopCtx)
		return err
	}
	s.Driver = d

	// Console capture covers the root tab immediately and every later window
	// through the attach hook.
	s.Console.Attach(d.BrowserContext(), "browser")
	d.SetAttachHook(func(tabCtx context.Context, h driver.Handle) {
		s.Console.Attach(tabCtx, string(h))
	})

	if s.cfg.Browser.DebugLog != "" {
		follower, err := diagnostics.FollowBrowserLog(s.cfg.Browser.DebugLog, s.logger)
		if err != nil {
			s.logger.Warn("Browser debug log unavailable.", zap.Error(err))
		} else {
			s.logFollower = follower
		}
	}

	id, err := loader.InstallExtension(ctx, d)
	if err != nil {
		return s.failStart(err)
	}
	s.extensionID = id
	s.logger.Info("Extension installed.",
		zap.String("run_id", s.runID),
		zap.String("extension_id", id))

	s.Registry = harness.NewRegistry(d, harness.Patterns{
		DappTitle:          s.cfg.Wallet.DappTitle,
		NotificationTitle:  s.cfg.Wallet.NotificationTitle,
		ExtensionURLPrefix: originPrefix(loader.HomeURL(id)),
	}, s.logger)

	if _, _, err := s.Registry.Refresh(ctx); err != nil {
		return s.failStart(err)
	}
	return nil
}

func (s *Session) failStart(err error) error {
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.Close(closeCtx)
	return err
}

// ExtensionID is the identifier resolved during install.
func (s *Session) ExtensionID() string {
	return s.extensionID
}

// ExtensionHomeURL is the extension's main UI page.
func (s *Session) ExtensionHomeURL() string {
	return s.Loader.HomeURL(s.extensionID)
}

// ReloadExtension satisfies the recovery strategy's reload capability.
func (s *Session) ReloadExtension(ctx context.Context) error {
	if err := s.Loader.ReloadExtension(ctx, s.Driver, s.extensionID); err != nil {
		return err
	}
	// The reload may have replaced the extension window; re-learn the layout.
	_, _, err := s.Registry.Refresh(ctx)
	return err
}

var _ harness.Reloader = (*Session)(nil)

// Screenshot captures the active window for failure reports.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.Driver.Screenshot(ctx)
}

// Close shuts the session down. Independent teardowns run concurrently; the
// first error wins but every teardown is attempted.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	g, gctx := errgroup.WithContext(ctx)
	if s.Driver != nil {
		g.Go(func() error {
			quitCtx := gctx
			if s.cfg.Browser.QuitTimeout > 0 {
				var cancel context.CancelFunc
				quitCtx, cancel = context.WithTimeout(gctx, s.cfg.Browser.QuitTimeout)
				defer cancel()
			}
			return s.Driver.Quit(quitCtx)
		})
	}
	if s.Dapp != nil {
		g.Go(func() error {
			return s.Dapp.Stop(gctx)
		})
	}
	if s.logFollower != nil {
		g.Go(func() error {
			return s.logFollower.Stop()
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("session teardown: %w", err)
	}
	s.logger.Info("Session closed.")
	return nil
}

// originPrefix reduces an extension page URL to its origin prefix, the string
// the registry matches window URLs against.
func originPrefix(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return fmt.Sprintf("%s://%s/", u.Scheme, u.Host)
}
