package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/lockbridge/walletrun/internal/driver"
)

// element addresses a DOM node by locator plus match index. Operations
// re-resolve the node on every call, so an element acquired before a re-render
// keeps working as long as something still matches; if nothing does, the
// operation fails with ErrNotFound and the caller's wait discipline decides
// what that means.
type element struct {
	d     *Driver
	loc   driver.Locator
	index int
}

var _ driver.Element = (*element)(nil)

// FindElement resolves the first match for the locator on the active window.
func (d *Driver) FindElement(ctx context.Context, loc driver.Locator) (driver.Element, error) {
	n, err := d.countMatches(ctx, loc)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", driver.ErrNotFound, loc)
	}
	return &element{d: d, loc: loc, index: 0}, nil
}

// FindElements resolves every match for the locator on the active window.
func (d *Driver) FindElements(ctx context.Context, loc driver.Locator) ([]driver.Element, error) {
	n, err := d.countMatches(ctx, loc)
	if err != nil {
		return nil, err
	}
	elems := make([]driver.Element, n)
	for i := 0; i < n; i++ {
		elems[i] = &element{d: d, loc: loc, index: i}
	}
	return elems, nil
}

func (d *Driver) countMatches(ctx context.Context, loc driver.Locator) (int, error) {
	var n int
	script := fmt.Sprintf(`(%s).length`, matchesExpr(loc))
	if err := d.ExecuteScript(ctx, script, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// matchesExpr builds a JS expression evaluating to an array of nodes matching
// the locator, in document order.
func matchesExpr(loc driver.Locator) string {
	switch loc.By {
	case driver.ByXPath:
		return fmt.Sprintf(
			`(() => { const r = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null); const out = []; for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i)); return out; })()`,
			jsString(loc.Value))
	case driver.ByTestID:
		return fmt.Sprintf(`Array.from(document.querySelectorAll(%s))`,
			jsString(fmt.Sprintf(`[data-testid=%q]`, loc.Value)))
	default:
		return fmt.Sprintf(`Array.from(document.querySelectorAll(%s))`, jsString(loc.Value))
	}
}

func (e *element) nodeExpr() string {
	return fmt.Sprintf(`(%s)[%d]`, matchesExpr(e.loc), e.index)
}

// eval runs body with `el` bound to the resolved node. Returns ErrNotFound if
// the node no longer resolves.
func (e *element) eval(ctx context.Context, body string, res any) error {
	script := fmt.Sprintf(
		`(() => { const el = %s; if (!el) return null; return (() => { %s })(); })()`,
		e.nodeExpr(), body)

	var raw json.RawMessage
	if err := e.d.ExecuteScript(ctx, script, &raw); err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: %s[%d]", driver.ErrNotFound, e.loc, e.index)
	}
	if res != nil {
		if err := json.Unmarshal(raw, res); err != nil {
			return fmt.Errorf("unexpected result for %s: %w", e.loc, err)
		}
	}
	return nil
}

func (e *element) Locator() driver.Locator { return e.loc }

// Click scrolls the node into view and clicks it through the DOM. A native
// mouse click would need layout geometry that popup windows do not always
// report before their first paint.
func (e *element) Click(ctx context.Context) error {
	return e.eval(ctx, `el.scrollIntoView({block: "center"}); el.click(); return true;`, nil)
}

// SendKeys focuses the node and inserts text through the CDP input domain so
// the extension's framework sees real composition events.
func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := e.eval(ctx, `el.focus(); return true;`, nil); err != nil {
		return err
	}
	tabCtx, err := e.d.activeContext(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := combine(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, input.InsertText(text)); err != nil {
		return fmt.Errorf("failed to type into %s: %w", e.loc, err)
	}
	return nil
}

// Clear empties an input through the prototype's value setter; assigning
// el.value directly is invisible to controlled React inputs.
func (e *element) Clear(ctx context.Context) error {
	return e.eval(ctx, `
		const proto = Object.getPrototypeOf(el);
		const desc = Object.getOwnPropertyDescriptor(proto, "value");
		if (desc && desc.set) { desc.set.call(el, ""); } else { el.value = ""; }
		el.dispatchEvent(new Event("input", {bubbles: true}));
		return true;`, nil)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.eval(ctx, `return (el.innerText !== undefined ? el.innerText : el.textContent).trim();`, &text)
	return text, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	var value string
	body := fmt.Sprintf(`const v = el.getAttribute(%s); return v === null ? "" : v;`, jsString(name))
	err := e.eval(ctx, body, &value)
	return value, err
}

func (e *element) Displayed(ctx context.Context) (bool, error) {
	var visible bool
	err := e.eval(ctx, `
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) return false;
		const style = window.getComputedStyle(el);
		return style.visibility !== "hidden" && style.display !== "none";`, &visible)
	if err != nil {
		return false, err
	}
	return visible, nil
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := e.eval(ctx, `return !el.disabled;`, &enabled)
	if err != nil {
		return false, err
	}
	return enabled, nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
