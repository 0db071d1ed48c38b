package harness

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbridge/walletrun/internal/driver"
)

const testWindow = driver.Handle("win-1")

func activeFake(t *testing.T) *fakeDriver {
	t.Helper()
	d := newFakeDriver()
	d.addWindow(testWindow, "Test", "https://example.test/")
	require.NoError(t, d.SwitchToWindow(context.Background(), testWindow))
	return d
}

func TestWaitLocatedImmediate(t *testing.T) {
	d := activeFake(t)
	loc := driver.TestID("ready")
	d.setElement(testWindow, newFakeElement(loc, "ok"))

	el, err := Wait(context.Background(), d, loc, Located(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, loc, el.Locator())
}

func TestWaitTimesOutWithTypedError(t *testing.T) {
	d := activeFake(t)
	loc := driver.TestID("never")

	start := time.Now()
	_, err := Wait(context.Background(), d, loc, Located(), 300*time.Millisecond)
	elapsed := time.Since(start)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, loc, timeout.Locator)
	assert.Equal(t, "located", timeout.Condition)
	assert.Equal(t, 300*time.Millisecond, timeout.Timeout)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond, "wait must run out its bound")
	assert.Less(t, elapsed, 2*time.Second, "wait must not overshoot wildly")
}

func TestWaitElementAppearsLater(t *testing.T) {
	d := activeFake(t)
	loc := driver.TestID("late")

	timer := time.AfterFunc(250*time.Millisecond, func() {
		d.setElement(testWindow, newFakeElement(loc, "arrived"))
	})
	defer timer.Stop()

	el, err := Wait(context.Background(), d, loc, Visible(), 2*time.Second)
	require.NoError(t, err)
	text, err := el.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "arrived", text)
}

func TestWaitVisibleWaitsForDisplay(t *testing.T) {
	d := activeFake(t)
	loc := driver.TestID("hidden")
	el := newFakeElement(loc, "x")
	el.displayed = false
	d.setElement(testWindow, el)

	_, err := Wait(context.Background(), d, loc, Visible(), 300*time.Millisecond)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "visible", timeout.Condition)
}

func TestWaitEnabled(t *testing.T) {
	d := activeFake(t)
	loc := driver.TestID("button")
	el := newFakeElement(loc, "Submit")
	el.enabled = false
	d.setElement(testWindow, el)

	timer := time.AfterFunc(200*time.Millisecond, func() {
		el.mu.Lock()
		el.enabled = true
		el.mu.Unlock()
	})
	defer timer.Stop()

	_, err := Wait(context.Background(), d, loc, Enabled(), 2*time.Second)
	require.NoError(t, err)
}

func TestWaitStale(t *testing.T) {
	d := activeFake(t)
	loc := driver.TestID("spinner")
	d.setElement(testWindow, newFakeElement(loc, "loading"))

	timer := time.AfterFunc(200*time.Millisecond, func() {
		d.removeElement(testWindow, loc)
	})
	defer timer.Stop()

	_, err := Wait(context.Background(), d, loc, Stale(), 2*time.Second)
	require.NoError(t, err)
}

func TestWaitTextMatches(t *testing.T) {
	d := activeFake(t)
	loc := driver.TestID("status")
	el := newFakeElement(loc, "pending")
	d.setElement(testWindow, el)

	timer := time.AfterFunc(200*time.Millisecond, func() {
		el.setText("confirmed")
	})
	defer timer.Stop()

	got, err := Wait(context.Background(), d, loc, TextMatches(regexp.MustCompile(`confirmed`)), 2*time.Second)
	require.NoError(t, err)
	text, err := got.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "confirmed", text)
}

func TestWaitStaleHandleKeepsPolling(t *testing.T) {
	// No active window at all: every check reports ErrStaleHandle, which the
	// wait maps to "not yet" until the bound runs out.
	d := newFakeDriver()
	_, err := Wait(context.Background(), d, driver.TestID("x"), Located(), 300*time.Millisecond)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.ErrorIs(t, timeout.Last, driver.ErrStaleHandle)
}

func TestWaitContextCancel(t *testing.T) {
	d := activeFake(t)
	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(150*time.Millisecond, cancel)
	defer timer.Stop()

	_, err := Wait(ctx, d, driver.TestID("never"), Located(), 10*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var timeout *TimeoutError
	assert.False(t, errors.As(err, &timeout), "cancellation is not a timeout")
}

func TestWaitForElementsGrowth(t *testing.T) {
	d := activeFake(t)
	loc := driver.TestID("seed-word")
	d.addElement(testWindow, newFakeElement(loc, "alpha"))

	timer := time.AfterFunc(200*time.Millisecond, func() {
		d.addElement(testWindow, newFakeElement(loc, "bravo"))
		d.addElement(testWindow, newFakeElement(loc, "charlie"))
	})
	defer timer.Stop()

	els, err := WaitForElements(context.Background(), d, loc, 3, 2*time.Second)
	require.NoError(t, err)
	assert.Len(t, els, 3)
}

func TestWaitForElementsTimeout(t *testing.T) {
	d := activeFake(t)
	loc := driver.TestID("seed-word")
	d.addElement(testWindow, newFakeElement(loc, "alpha"))

	_, err := WaitForElements(context.Background(), d, loc, 12, 300*time.Millisecond)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Contains(t, timeout.Condition, "count >= 12")
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayTiers(t *testing.T) {
	assert.Equal(t, 2*TinyDelay, RegularDelay)
	assert.Equal(t, 2*RegularDelay, LargeDelay)
}
