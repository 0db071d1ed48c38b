package harness

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lockbridge/walletrun/internal/driver"
)

// The wallet UI mutates asynchronously in response to background chain state;
// nothing it exposes is a reliable "done" event. Bounded fixed-interval
// polling is the one synchronization primitive every higher layer builds on.
const (
	// PollInterval is the fixed pause between driver queries.
	PollInterval = 100 * time.Millisecond
	// DefaultTimeout bounds waits whose caller does not supply one. Every
	// wait in the harness is finite.
	DefaultTimeout = 10 * time.Second
)

// Unconditional delay tiers for transitions no queryable predicate can
// observe (popup close animations, route transitions). Large follows actions
// that trigger heavier background work, such as unlocking or submitting a
// transaction.
const (
	TinyDelay    = 200 * time.Millisecond
	RegularDelay = 2 * TinyDelay
	LargeDelay   = 2 * RegularDelay
)

// Sleep pauses for d unless ctx is canceled first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Condition is a predicate class the wait primitive polls for.
type Condition interface {
	// Name identifies the condition in TimeoutError messages.
	Name() string
	// Check queries the driver once. done reports whether the condition
	// holds; el is the resolved element when one exists. A driver
	// ErrNotFound/ErrStaleHandle miss is mapped to done=false by Wait, not
	// returned as err.
	Check(ctx context.Context, d driver.Driver, loc driver.Locator) (el driver.Element, done bool, err error)
}

type conditionFunc struct {
	name string
	fn   func(ctx context.Context, d driver.Driver, loc driver.Locator) (driver.Element, bool, error)
}

func (c conditionFunc) Name() string { return c.name }
func (c conditionFunc) Check(ctx context.Context, d driver.Driver, loc driver.Locator) (driver.Element, bool, error) {
	return c.fn(ctx, d, loc)
}

// Located holds once at least one element matches the locator.
func Located() Condition {
	return conditionFunc{name: "located", fn: func(ctx context.Context, d driver.Driver, loc driver.Locator) (driver.Element, bool, error) {
		el, err := d.FindElement(ctx, loc)
		if err != nil {
			return nil, false, err
		}
		return el, true, nil
	}}
}

// Visible holds once a matching element is displayed.
func Visible() Condition {
	return conditionFunc{name: "visible", fn: func(ctx context.Context, d driver.Driver, loc driver.Locator) (driver.Element, bool, error) {
		el, err := d.FindElement(ctx, loc)
		if err != nil {
			return nil, false, err
		}
		shown, err := el.Displayed(ctx)
		if err != nil {
			return nil, false, err
		}
		return el, shown, nil
	}}
}

// Enabled holds once a matching element is displayed and not disabled.
func Enabled() Condition {
	return conditionFunc{name: "enabled", fn: func(ctx context.Context, d driver.Driver, loc driver.Locator) (driver.Element, bool, error) {
		el, err := d.FindElement(ctx, loc)
		if err != nil {
			return nil, false, err
		}
		enabled, err := el.Enabled(ctx)
		if err != nil {
			return nil, false, err
		}
		return el, enabled, nil
	}}
}

// Stale holds once no element matches the locator anymore. The usual use is
// waiting out a spinner or a dismissed dialog.
func Stale() Condition {
	return conditionFunc{name: "stale", fn: func(ctx context.Context, d driver.Driver, loc driver.Locator) (driver.Element, bool, error) {
		_, err := d.FindElement(ctx, loc)
		if errors.Is(err, driver.ErrNotFound) {
			return nil, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}}
}

// TextMatches holds once a matching element's text matches the pattern.
func TextMatches(pattern *regexp.Regexp) Condition {
	return conditionFunc{name: "textMatches(" + pattern.String() + ")", fn: func(ctx context.Context, d driver.Driver, loc driver.Locator) (driver.Element, bool, error) {
		el, err := d.FindElement(ctx, loc)
		if err != nil {
			return nil, false, err
		}
		text, err := el.Text(ctx)
		if err != nil {
			return nil, false, err
		}
		return el, pattern.MatchString(text), nil
	}}
}

// Wait polls the driver at PollInterval until cond holds for loc or timeout
// elapses. A non-positive timeout selects DefaultTimeout. Wait performs
// driver queries only; it never mutates session or registry state.
func Wait(ctx context.Context, d driver.Driver, loc driver.Locator, cond Condition, timeout time.Duration) (driver.Element, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	var last error
	for {
		el, done, err := cond.Check(ctx, d, loc)
		switch {
		case err == nil && done:
			return el, nil
		case err == nil:
			last = nil
		case errors.Is(err, driver.ErrNotFound), errors.Is(err, driver.ErrStaleHandle):
			// The element is not there yet (or the view is mid-teardown);
			// keep polling.
			last = err
		default:
			return nil, err
		}

		if time.Now().After(deadline) {
			return nil, &TimeoutError{Locator: loc, Condition: cond.Name(), Timeout: timeout, Last: last}
		}
		if err := Sleep(ctx, PollInterval); err != nil {
			return nil, err
		}
	}
}

// WaitForElements polls until at least min elements match loc, returning the
// full match set.
func WaitForElements(ctx context.Context, d driver.Driver, loc driver.Locator, min int, timeout time.Duration) ([]driver.Element, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		els, err := d.FindElements(ctx, loc)
		if err != nil && !errors.Is(err, driver.ErrNotFound) && !errors.Is(err, driver.ErrStaleHandle) {
			return nil, err
		}
		if err == nil && len(els) >= min {
			return els, nil
		}
		if time.Now().After(deadline) {
			return nil, &TimeoutError{
				Locator:   loc,
				Condition: fmt.Sprintf("located (count >= %d)", min),
				Timeout:   timeout,
			}
		}
		if err := Sleep(ctx, PollInterval); err != nil {
			return nil, err
		}
	}
}
