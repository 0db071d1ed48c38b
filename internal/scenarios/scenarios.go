// Package scenarios contains the ordered user-facing flows the harness runs
// against the wallet extension. Groups build on each other: onboarding leaves
// an unlocked wallet behind, the dapp flows assume a funded account, and the
// token flows assume the dapp connection from earlier groups.
package scenarios

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lockbridge/walletrun/internal/driver"
	"github.com/lockbridge/walletrun/internal/harness"
)

// Wire-format signatures the dapp page surfaces after a provider call.
var (
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// Suite binds the scenario steps to the live session collaborators.
type Suite struct {
	D        driver.Driver
	Registry *harness.Registry
	Recovery *harness.Recovery
	Logger   *zap.Logger

	// ExtensionHomeURL is the wallet's main UI page, resolved after install.
	ExtensionHomeURL string
	// DappURL is the local third-party test page.
	DappURL string
	// Password seeds onboarding; scenarios copy it into the run state.
	Password string
	// Timeout is the default wait budget per synchronization point.
	Timeout time.Duration
}

// Groups returns every scenario group in execution order.
func (s *Suite) Groups() []harness.Group {
	return []harness.Group{
		s.Onboarding(),
		s.LockUnlock(),
		s.ImportFromSeed(),
		s.SendNative(),
		s.DappConnect(),
		s.DappSend(),
		s.ContractDeployAndCall(),
		s.CustomToken(),
		s.HideToken(),
	}
}

// openExtensionUI navigates the active window to the wallet's main page and
// waits for the app root to render.
func (s *Suite) openExtensionUI(ctx context.Context) error {
	if err := s.D.Navigate(ctx, s.ExtensionHomeURL); err != nil {
		return err
	}
	_, err := harness.Wait(ctx, s.D, driver.TestID("app-root"), harness.Visible(), s.Timeout)
	return err
}

// click waits for the locator to be enabled, then clicks it.
func (s *Suite) click(ctx context.Context, loc driver.Locator) error {
	el, err := harness.Wait(ctx, s.D, loc, harness.Enabled(), s.Timeout)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

// typeInto waits for the locator, clears it, and types text.
func (s *Suite) typeInto(ctx context.Context, loc driver.Locator, text string) error {
	el, err := harness.Wait(ctx, s.D, loc, harness.Visible(), s.Timeout)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return err
	}
	return el.SendKeys(ctx, text)
}

// waitText waits for the locator's text to match pattern, then returns it.
func (s *Suite) waitText(ctx context.Context, loc driver.Locator, pattern *regexp.Regexp) (string, error) {
	el, err := harness.Wait(ctx, s.D, loc, harness.TextMatches(pattern), s.Timeout)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// text waits for the locator and reads its text content.
func (s *Suite) text(ctx context.Context, loc driver.Locator) (string, error) {
	el, err := harness.Wait(ctx, s.D, loc, harness.Visible(), s.Timeout)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// approveNotification waits for the wallet's approval popup to spawn as a
// third window, switches to it, clicks the confirm control, and waits for the
// popup to close again. expectBefore is the window count before the popup.
func (s *Suite) approveNotification(ctx context.Context, expectBefore int, confirm driver.Locator) error {
	if _, err := s.Registry.WaitForCount(ctx, expectBefore+1, s.Timeout); err != nil {
		return fmt.Errorf("notification window did not spawn: %w", err)
	}
	if err := s.Registry.SwitchTo(ctx, harness.RoleNotification); err != nil {
		return err
	}
	if err := s.click(ctx, confirm); err != nil {
		return err
	}
	// The popup closes itself after confirmation.
	if _, err := s.Registry.WaitForCount(ctx, expectBefore, s.Timeout); err != nil {
		return fmt.Errorf("notification window did not close: %w", err)
	}
	s.Logger.Debug("Notification approved.", zap.String("confirm", confirm.String()))
	return s.Registry.SwitchTo(ctx, harness.RoleDapp)
}
