package harness

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lockbridge/walletrun/internal/driver"
)

// Reloader is the deterministic recovery entry point: reopen the extension UI
// after an asynchronous extension-lifecycle reset tore the current view down.
type Reloader interface {
	ReloadExtension(ctx context.Context) error
}

// Recovery wraps actions that depend on an extension view which can
// intermittently disappear under the harness. The policy is a single bounded
// retry: probe for the expected element, and if the probe times out, reload
// the extension and re-run the wrapped action exactly once. A second failure
// propagates as ExtensionLifecycleError; unbounded retry would mask genuine
// regressions as flakiness.
type Recovery struct {
	d        driver.Driver
	reloader Reloader
	logger   *zap.Logger
	// ProbeTimeout is the inner bound for the probe locator; it is shorter
	// than the default wait so recovery triggers before the step budget is
	// spent.
	ProbeTimeout time.Duration
}

// NewRecovery builds a recovery strategy over the given driver and reloader.
func NewRecovery(d driver.Driver, reloader Reloader, logger *zap.Logger) *Recovery {
	return &Recovery{
		d:            d,
		reloader:     reloader,
		logger:       logger.Named("recovery"),
		ProbeTimeout: 5 * time.Second,
	}
}

// Do probes for probe to become visible, then runs action. On a probe
// timeout (and only then) it reloads the extension and repeats once, passing
// recovered=true. The wrapped action is invoked at most twice per call.
func (r *Recovery) Do(ctx context.Context, probe driver.Locator, action func(ctx context.Context, recovered bool) error) error {
	attempt := func(recovered bool) error {
		if _, err := Wait(ctx, r.d, probe, Visible(), r.ProbeTimeout); err != nil {
			return err
		}
		return action(ctx, recovered)
	}

	first := attempt(false)
	if first == nil {
		return nil
	}

	var timeout *TimeoutError
	if !errors.As(first, &timeout) {
		// Assertion mismatches and hard driver errors are real failures, not
		// lifecycle flakiness.
		return first
	}

	r.logger.Warn("Probe timed out; reloading extension and retrying once.",
		zap.String("probe", probe.String()), zap.Error(first))

	if err := r.reloader.ReloadExtension(ctx); err != nil {
		return &ExtensionLifecycleError{Original: first, AfterRecovery: err}
	}

	if second := attempt(true); second != nil {
		return &ExtensionLifecycleError{Original: first, AfterRecovery: second}
	}

	r.logger.Info("Recovered after extension reload.", zap.String("probe", probe.String()))
	return nil
}
