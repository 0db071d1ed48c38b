package harness

import (
	"context"
	"sync"

	"github.com/lockbridge/walletrun/internal/driver"
)

// fakeElement is an in-memory element with scriptable state.
type fakeElement struct {
	mu        sync.Mutex
	loc       driver.Locator
	text      string
	attrs     map[string]string
	displayed bool
	enabled   bool
	clicks    int
	typed     []string
}

func newFakeElement(loc driver.Locator, text string) *fakeElement {
	return &fakeElement{loc: loc, text: text, displayed: true, enabled: true, attrs: map[string]string{}}
}

func (e *fakeElement) Click(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clicks++
	return nil
}

func (e *fakeElement) SendKeys(_ context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed = append(e.typed, text)
	return nil
}

func (e *fakeElement) Clear(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed = nil
	return nil
}

func (e *fakeElement) Text(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *fakeElement) setText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

func (e *fakeElement) Attribute(_ context.Context, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attrs[name], nil
}

func (e *fakeElement) Displayed(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayed, nil
}

func (e *fakeElement) Enabled(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled, nil
}

func (e *fakeElement) Locator() driver.Locator { return e.loc }

type fakeWindow struct {
	title    string
	url      string
	elements map[string][]*fakeElement
}

// fakeDriver is an in-memory driver.Driver for exercising the harness core
// without a browser. Mutators are safe to call from test goroutines that
// simulate asynchronous browser behavior.
type fakeDriver struct {
	mu      sync.Mutex
	windows map[driver.Handle]*fakeWindow
	order   []driver.Handle
	active  driver.Handle

	switches []driver.Handle
	closedBy []driver.Handle
	scripts  []string
	quit     bool
}

var _ driver.Driver = (*fakeDriver)(nil)

func newFakeDriver() *fakeDriver {
	return &fakeDriver{windows: make(map[driver.Handle]*fakeWindow)}
}

func (d *fakeDriver) addWindow(h driver.Handle, title, url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows[h] = &fakeWindow{title: title, url: url, elements: make(map[string][]*fakeElement)}
	d.order = append(d.order, h)
}

func (d *fakeDriver) removeWindow(h driver.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropLocked(h)
}

func (d *fakeDriver) dropLocked(h driver.Handle) {
	delete(d.windows, h)
	for i, o := range d.order {
		if o == h {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if d.active == h {
		d.active = ""
	}
}

// setElement installs an element on a window, replacing prior matches.
func (d *fakeDriver) setElement(h driver.Handle, el *fakeElement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.windows[h]; ok {
		w.elements[el.loc.String()] = []*fakeElement{el}
	}
}

// addElement appends an element to a window's match list.
func (d *fakeDriver) addElement(h driver.Handle, el *fakeElement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.windows[h]; ok {
		w.elements[el.loc.String()] = append(w.elements[el.loc.String()], el)
	}
}

func (d *fakeDriver) removeElement(h driver.Handle, loc driver.Locator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.windows[h]; ok {
		delete(w.elements, loc.String())
	}
}

func (d *fakeDriver) FindElement(ctx context.Context, loc driver.Locator) (driver.Element, error) {
	els, err := d.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, driver.ErrNotFound
	}
	return els[0], nil
}

func (d *fakeDriver) FindElements(_ context.Context, loc driver.Locator) ([]driver.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[d.active]
	if !ok {
		return nil, driver.ErrStaleHandle
	}
	matches := w.elements[loc.String()]
	out := make([]driver.Element, 0, len(matches))
	for _, el := range matches {
		out = append(out, el)
	}
	return out, nil
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.windows[d.active]; ok {
		w.url = url
	}
	return nil
}

func (d *fakeDriver) ExecuteScript(_ context.Context, script string, _ any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, script)
	return nil
}

func (d *fakeDriver) GetAllWindowHandles(context.Context) ([]driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]driver.Handle, len(d.order))
	copy(out, d.order)
	return out, nil
}

func (d *fakeDriver) SwitchToWindow(_ context.Context, h driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.windows[h]; !ok {
		return driver.ErrStaleHandle
	}
	d.active = h
	d.switches = append(d.switches, h)
	return nil
}

func (d *fakeDriver) ActiveWindow() driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *fakeDriver) WindowTitle(_ context.Context, h driver.Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[h]
	if !ok {
		return "", driver.ErrStaleHandle
	}
	return w.title, nil
}

func (d *fakeDriver) WindowURL(_ context.Context, h driver.Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[h]
	if !ok {
		return "", driver.ErrStaleHandle
	}
	return w.url, nil
}

func (d *fakeDriver) CloseWindow(_ context.Context, h driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.windows[h]; !ok {
		return driver.ErrStaleHandle
	}
	d.closedBy = append(d.closedBy, h)
	d.dropLocked(h)
	return nil
}

func (d *fakeDriver) Screenshot(context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (d *fakeDriver) Quit(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quit = true
	return nil
}
