// Package cdp implements the driver capability on top of chromedp. Window
// handles map to CDP page-target IDs; a chromedp context is attached lazily
// per target and cached for the lifetime of that target.
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/lockbridge/walletrun/internal/driver"
)

// Options configures the browser process launch.
type Options struct {
	Headless    bool
	UserDataDir string
	// Args are raw chromium switches, e.g. the extension-loading flags
	// contributed by the extension loader.
	Args []string
	// RemoteURL attaches to an already-running browser's devtools endpoint
	// instead of launching one. Used for the firefox vendor, which chromedp
	// cannot launch itself.
	RemoteURL string
}

const attachTimeout = 10 * time.Second

// Driver drives a single chromium process over CDP.
type Driver struct {
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	// browserCtx is the context of the initial tab; it carries the browser
	// connection every per-target context derives from.
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	tabs   map[driver.Handle]*tab
	active driver.Handle

	// onAttach runs once per target right after its context is created.
	// Diagnostics use it to install CDP event listeners on every window.
	onAttach func(tabCtx context.Context, h driver.Handle)
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var _ driver.Driver = (*Driver)(nil)

// New launches the browser and connects. The returned driver owns the
// process; Quit must be called exactly once.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Driver, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	// Extensions do not load under classic headless; headless=new is the only
	// mode that supports both.
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	allocOpts = append(allocOpts,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	d := &Driver{
		logger: logger.Named("cdp"),
		tabs:   make(map[driver.Handle]*tab),
	}
	return d, d.start(ctx, allocOpts, opts)
}

func (d *Driver) start(ctx context.Context, allocOpts []chromedp.ExecAllocatorOption, opts Options) error {
	if opts.RemoteURL != "" {
		d.allocCtx, d.allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		// Raw switches arrive as "name=value" or bare "name".
		for _, arg := range opts.Args {
			name, value := splitSwitch(arg)
			allocOpts = append(allocOpts, chromedp.Flag(name, value))
		}
		d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}
	d.browserCtx, d.browserCancel = chromedp.NewContext(d.allocCtx)

	// Force the browser to actually launch so that startup failures surface
	// here instead of on the first scenario action.
	if err := chromedp.Run(d.browserCtx); err != nil {
		d.allocCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	handles, err := d.GetAllWindowHandles(d.browserCtx)
	if err != nil {
		return err
	}
	if len(handles) > 0 {
		d.mu.Lock()
		d.active = handles[0]
		d.mu.Unlock()
	}
	d.logger.Info("Browser launched.", zap.Int("initial_windows", len(handles)))
	return nil
}

// BrowserContext exposes the root chromedp context for collaborators that
// attach their own CDP listeners (console capture, extension loader).
func (d *Driver) BrowserContext() context.Context {
	return d.browserCtx
}

// SetAttachHook registers a callback invoked each time the driver attaches to
// a new target. Must be set before the first window interaction.
func (d *Driver) SetAttachHook(hook func(tabCtx context.Context, h driver.Handle)) {
	d.mu.Lock()
	d.onAttach = hook
	d.mu.Unlock()
}

// GetAllWindowHandles enumerates page-level targets. Extension background
// pages and service workers are excluded; they are not windows.
func (d *Driver) GetAllWindowHandles(ctx context.Context) ([]driver.Handle, error) {
	infos, err := d.targets(ctx)
	if err != nil {
		return nil, err
	}
	handles := make([]driver.Handle, 0, len(infos))
	for _, info := range infos {
		handles = append(handles, driver.Handle(info.TargetID))
	}
	return handles, nil
}

// AllTargets returns every CDP target, including extension background pages
// and service workers that are excluded from window handles. The extension
// loaders use it to discover the installed extension's origin.
func (d *Driver) AllTargets(ctx context.Context) ([]*target.Info, error) {
	runCtx, cancel := combine(d.browserCtx, ctx)
	defer cancel()

	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate targets: %w", err)
	}
	return infos, nil
}

func (d *Driver) targets(ctx context.Context) ([]*target.Info, error) {
	runCtx, cancel := combine(d.browserCtx, ctx)
	defer cancel()

	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate targets: %w", err)
	}
	pages := infos[:0]
	for _, info := range infos {
		if info.Type == "page" {
			pages = append(pages, info)
		}
	}
	return pages, nil
}

// SwitchToWindow activates the context for the given handle, attaching to the
// target on first use.
func (d *Driver) SwitchToWindow(ctx context.Context, h driver.Handle) error {
	if _, err := d.contextFor(ctx, h); err != nil {
		return err
	}
	d.mu.Lock()
	d.active = h
	d.mu.Unlock()

	// Bring the target to the foreground; popups opened in the background do
	// not otherwise receive focus-dependent UI state.
	tabCtx, err := d.contextFor(ctx, h)
	if err != nil {
		return err
	}
	runCtx, cancel := combine(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, page.BringToFront()); err != nil {
		return fmt.Errorf("failed to focus window %s: %w", h, err)
	}
	return nil
}

// ActiveWindow reports the handle most recently activated by SwitchToWindow.
func (d *Driver) ActiveWindow() driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Driver) contextFor(ctx context.Context, h driver.Handle) (context.Context, error) {
	d.mu.Lock()
	if t, ok := d.tabs[h]; ok {
		d.mu.Unlock()
		return t.ctx, nil
	}
	d.mu.Unlock()

	infos, err := d.targets(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, info := range infos {
		if driver.Handle(info.TargetID) == h {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", driver.ErrStaleHandle, h)
	}

	tabCtx, tabCancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(target.ID(h)))
	attachCtx, attachCancel := context.WithTimeout(tabCtx, attachTimeout)
	defer attachCancel()
	if err := chromedp.Run(attachCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to attach to target %s: %w", h, err)
	}

	d.mu.Lock()
	d.tabs[h] = &tab{ctx: tabCtx, cancel: tabCancel}
	hook := d.onAttach
	d.mu.Unlock()

	if hook != nil {
		hook(tabCtx, h)
	}
	return tabCtx, nil
}

func (d *Driver) activeContext(ctx context.Context) (context.Context, error) {
	d.mu.Lock()
	h := d.active
	d.mu.Unlock()
	if h == "" {
		return nil, fmt.Errorf("%w: no active window", driver.ErrStaleHandle)
	}
	return d.contextFor(ctx, h)
}

// WindowTitle reads a target's title without activating it.
func (d *Driver) WindowTitle(ctx context.Context, h driver.Handle) (string, error) {
	infos, err := d.targets(ctx)
	if err != nil {
		return "", err
	}
	for _, info := range infos {
		if driver.Handle(info.TargetID) == h {
			return info.Title, nil
		}
	}
	return "", fmt.Errorf("%w: %s", driver.ErrStaleHandle, h)
}

// WindowURL reads a target's URL without activating it.
func (d *Driver) WindowURL(ctx context.Context, h driver.Handle) (string, error) {
	infos, err := d.targets(ctx)
	if err != nil {
		return "", err
	}
	for _, info := range infos {
		if driver.Handle(info.TargetID) == h {
			return info.URL, nil
		}
	}
	return "", fmt.Errorf("%w: %s", driver.ErrStaleHandle, h)
}

// CloseWindow closes the target and drops its cached context. The active
// handle is cleared if it was the one closed.
func (d *Driver) CloseWindow(ctx context.Context, h driver.Handle) error {
	tabCtx, err := d.contextFor(ctx, h)
	if err != nil {
		return err
	}
	runCtx, cancel := combine(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, page.Close()); err != nil {
		return fmt.Errorf("failed to close window %s: %w", h, err)
	}

	d.mu.Lock()
	if t, ok := d.tabs[h]; ok {
		t.cancel()
		delete(d.tabs, h)
	}
	if d.active == h {
		d.active = ""
	}
	d.mu.Unlock()
	return nil
}

// Navigate loads a URL in the active window.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	tabCtx, err := d.activeContext(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := combine(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// ExecuteScript evaluates JavaScript in the active window, awaiting promises.
func (d *Driver) ExecuteScript(ctx context.Context, script string, res any) error {
	tabCtx, err := d.activeContext(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := combine(tabCtx, ctx)
	defer cancel()

	await := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}
	var action chromedp.Action
	if res == nil {
		action = chromedp.Evaluate(script, nil, await)
	} else {
		action = chromedp.Evaluate(script, res, await)
	}
	if err := chromedp.Run(runCtx, action); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// Screenshot captures the active window as PNG bytes.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	tabCtx, err := d.activeContext(ctx)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := combine(tabCtx, ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Quit tears down every cached target context and the browser process.
func (d *Driver) Quit(ctx context.Context) error {
	d.mu.Lock()
	for h, t := range d.tabs {
		t.cancel()
		delete(d.tabs, h)
	}
	d.mu.Unlock()

	err := chromedp.Cancel(d.browserCtx)
	d.browserCancel()
	d.allocCancel()
	if err != nil {
		return fmt.Errorf("browser shutdown reported: %w", err)
	}
	d.logger.Info("Browser terminated.")
	return nil
}

func splitSwitch(arg string) (name string, value any) {
	for i := 0; i < len(arg); i++ {
		if arg[i] == '=' {
			return arg[:i], arg[i+1:]
		}
	}
	return arg, true
}

// combine derives a context from primary (which carries the CDP target) that
// is additionally canceled when secondary is. chromedp requires the target
// context as the base; plain context.WithCancel(secondary) would lose the
// connection values.
func combine(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
