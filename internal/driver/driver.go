// Package driver defines the browser-automation capability consumed by the
// harness. The harness core never talks to a browser protocol directly; it
// programs against these interfaces so that the polling, registry and runner
// logic can be exercised with fakes.
package driver

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by FindElement/FindElements when no element matches
// the locator. The wait primitive treats this as "predicate not yet
// satisfied" rather than a hard failure.
var ErrNotFound = errors.New("driver: no element matches locator")

// ErrStaleHandle is returned when an operation targets a window handle that
// the browser no longer reports.
var ErrStaleHandle = errors.New("driver: window handle is no longer open")

// Handle is an opaque identifier for a browser context (tab or popup). It is
// supplied by the driver and only ever referenced, never fabricated, by the
// harness.
type Handle string

// By names a locator strategy.
type By string

const (
	ByCSS   By = "css"
	ByXPath By = "xpath"
	// ByTestID matches the extension UI's data-testid attributes, the most
	// stable hooks the wallet exposes.
	ByTestID By = "testid"
)

// Locator identifies one or more elements on the active page.
type Locator struct {
	By    By
	Value string
}

// Css builds a CSS locator.
func Css(sel string) Locator { return Locator{By: ByCSS, Value: sel} }

// XPath builds an XPath locator.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// TestID builds a locator over data-testid attributes.
func TestID(id string) Locator { return Locator{By: ByTestID, Value: id} }

// String renders the locator for error messages and logs.
func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.By, l.Value)
}

// Element is a resolved handle to a DOM element on the active page. All
// operations re-query by the element's locator under the hood, so a resolved
// Element can go stale; callers synchronize through the wait primitive first.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Displayed(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	// Locator returns the locator this element was resolved from.
	Locator() Locator
}

// Driver is the automation capability the harness consumes. Implementations
// own exactly one browser process; the Session owns exactly one Driver.
type Driver interface {
	// FindElement resolves the first element matching the locator on the
	// active window, or ErrNotFound.
	FindElement(ctx context.Context, loc Locator) (Element, error)
	// FindElements resolves every element matching the locator on the active
	// window. An empty result is not an error.
	FindElements(ctx context.Context, loc Locator) ([]Element, error)

	// Navigate loads a URL in the active window.
	Navigate(ctx context.Context, url string) error
	// ExecuteScript evaluates JavaScript in the active window and, when res
	// is non-nil, unmarshals the completion value into it.
	ExecuteScript(ctx context.Context, script string, res any) error

	// GetAllWindowHandles returns every open page-level context.
	GetAllWindowHandles(ctx context.Context) ([]Handle, error)
	// SwitchToWindow makes the given context the active one.
	SwitchToWindow(ctx context.Context, h Handle) error
	// ActiveWindow reports the currently active handle.
	ActiveWindow() Handle
	// WindowTitle and WindowURL inspect a context without activating it.
	WindowTitle(ctx context.Context, h Handle) (string, error)
	WindowURL(ctx context.Context, h Handle) (string, error)
	// CloseWindow closes the given context. Closing the active context leaves
	// no active context until the next SwitchToWindow.
	CloseWindow(ctx context.Context, h Handle) error

	// Screenshot captures the active window as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Quit tears down the browser process. The driver is unusable afterwards.
	Quit(ctx context.Context) error
}
