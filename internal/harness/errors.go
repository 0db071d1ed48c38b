package harness

import (
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lockbridge/walletrun/internal/driver"
)

// TimeoutError reports that a wait condition never held within its bound. It
// carries the locator and condition so a failing step's log line is enough to
// find the UI element that never appeared.
type TimeoutError struct {
	Locator   driver.Locator
	Condition string
	Timeout   time.Duration
	// Last is the most recent driver error observed while polling, if any.
	Last error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s to be %s", e.Timeout, e.Locator, e.Condition)
	if e.Last != nil {
		msg += fmt.Sprintf(" (last: %v)", e.Last)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Last }

// AssertionMismatchError reports an observed value that did not match the
// expectation. It is always fatal to the current step and never retried.
type AssertionMismatchError struct {
	Subject string
	Want    any
	Got     any
}

func (e *AssertionMismatchError) Error() string {
	if diff := cmp.Diff(e.Want, e.Got); diff != "" {
		return fmt.Sprintf("assertion on %s failed (-want +got):\n%s", e.Subject, diff)
	}
	return fmt.Sprintf("assertion on %s failed: want %v, got %v", e.Subject, e.Want, e.Got)
}

// UnknownRoleError reports a SwitchTo against a role with no registered
// handle.
type UnknownRoleError struct {
	Role Role
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("no window is registered under role %q", e.Role)
}

// NoSurvivingContextError reports a CloseAllExcept whose keep-set resolved to
// nothing, which would leave the session without an active window.
type NoSurvivingContextError struct {
	Kept []Role
}

func (e *NoSurvivingContextError) Error() string {
	return fmt.Sprintf("closing windows would leave no surviving context (keep-set %v)", e.Kept)
}

// ExtensionLifecycleError reports that a flaky action failed both before and
// after the single extension-reload recovery.
type ExtensionLifecycleError struct {
	Original      error
	AfterRecovery error
}

func (e *ExtensionLifecycleError) Error() string {
	return fmt.Sprintf("action failed even after extension reload: %v (original failure: %v)",
		e.AfterRecovery, e.Original)
}

func (e *ExtensionLifecycleError) Unwrap() error { return e.AfterRecovery }
