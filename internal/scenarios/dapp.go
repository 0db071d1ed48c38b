package scenarios

import (
	"context"
	"fmt"
	"strings"

	"github.com/lockbridge/walletrun/internal/driver"
	"github.com/lockbridge/walletrun/internal/harness"
)

// dappWindows is the steady-state window count once the dapp tab exists
// alongside the extension window.
const dappWindows = 2

// DappConnect opens the local test page in a second window and approves its
// connection request through the wallet's notification popup.
func (s *Suite) DappConnect() harness.Group {
	return harness.Group{
		Name: "dapp connect",
		Steps: []harness.Step{
			{
				Name: "open dapp window",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleExtension); err != nil {
						return err
					}
					script := fmt.Sprintf("window.open(%q); true", st.DappURL)
					if err := s.D.ExecuteScript(ctx, script, nil); err != nil {
						return err
					}
					if _, err := s.Registry.WaitForCount(ctx, dappWindows, s.Timeout); err != nil {
						return err
					}
					if err := s.Registry.SwitchTo(ctx, harness.RoleDapp); err != nil {
						return err
					}
					_, err := harness.Wait(ctx, s.D, driver.Css("#connect"), harness.Enabled(), s.Timeout)
					return err
				},
			},
			{
				Name: "request connection",
				Run: func(ctx context.Context, st *harness.State) error {
					return s.click(ctx, driver.Css("#connect"))
				},
			},
			{
				Name: "approve connection in notification",
				Run: func(ctx context.Context, st *harness.State) error {
					return s.approveNotification(ctx, dappWindows, driver.TestID("connect-approve"))
				},
			},
			{
				Name: "verify connected account",
				Run: func(ctx context.Context, st *harness.State) error {
					accounts, err := s.text(ctx, driver.Css("#accounts"))
					if err != nil {
						return err
					}
					got := strings.TrimSpace(accounts)
					if !strings.EqualFold(got, st.AccountAddress) {
						return &harness.AssertionMismatchError{
							Subject: "dapp connected account",
							Want:    strings.ToLower(st.AccountAddress),
							Got:     strings.ToLower(got),
						}
					}
					return nil
				},
			},
		},
	}
}

// DappSend triggers two transfers from the dapp page, approving each through
// the notification popup, and asserts exactly two new activity entries landed
// in the extension.
func (s *Suite) DappSend() harness.Group {
	sendOnce := func(ctx context.Context) error {
		if err := s.Registry.SwitchTo(ctx, harness.RoleDapp); err != nil {
			return err
		}
		if err := s.click(ctx, driver.Css("#send")); err != nil {
			return err
		}
		if err := s.approveNotification(ctx, dappWindows, driver.TestID("tx-confirm")); err != nil {
			return err
		}
		_, err := harness.Wait(ctx, s.D, driver.Css("#last-tx"),
			harness.TextMatches(txHashPattern), s.Timeout)
		return err
	}

	return harness.Group{
		Name: "dapp send",
		Steps: []harness.Step{
			{
				Name: "record activity baseline",
				Run: func(ctx context.Context, st *harness.State) error {
					n, err := s.activityCount(ctx)
					if err != nil {
						return err
					}
					st.ActivityBaseline = n
					return nil
				},
			},
			{
				Name: "send first transaction",
				Run: func(ctx context.Context, st *harness.State) error {
					return sendOnce(ctx)
				},
			},
			{
				Name: "send second transaction",
				Run: func(ctx context.Context, st *harness.State) error {
					return sendOnce(ctx)
				},
			},
			{
				Name: "verify transaction count",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleExtension); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("tab-activity")); err != nil {
						return err
					}
					els, err := harness.WaitForElements(ctx, s.D, driver.TestID("activity-item"),
						st.ActivityBaseline+2, s.Timeout)
					if err != nil {
						return err
					}
					if got := len(els) - st.ActivityBaseline; got != 2 {
						return &harness.AssertionMismatchError{
							Subject: "dapp-initiated transaction count",
							Want:    2,
							Got:     got,
						}
					}
					return nil
				},
			},
		},
	}
}

// ContractDeployAndCall deploys the test contract from the dapp page and then
// calls into it, each through a notification approval.
func (s *Suite) ContractDeployAndCall() harness.Group {
	return harness.Group{
		Name: "contract deploy and call",
		Steps: []harness.Step{
			{
				Name: "deploy contract",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleDapp); err != nil {
						return err
					}
					if err := s.click(ctx, driver.Css("#deploy-contract")); err != nil {
						return err
					}
					if err := s.approveNotification(ctx, dappWindows, driver.TestID("tx-confirm")); err != nil {
						return err
					}
					addr, err := s.waitText(ctx, driver.Css("#contract-address"), addressPattern)
					if err != nil {
						return err
					}
					st.ContractAddress = addr
					return nil
				},
			},
			{
				Name: "call contract",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.click(ctx, driver.Css("#call-contract")); err != nil {
						return err
					}
					if err := s.approveNotification(ctx, dappWindows, driver.TestID("tx-confirm")); err != nil {
						return err
					}
					_, err := harness.Wait(ctx, s.D, driver.Css("#last-tx"),
						harness.TextMatches(txHashPattern), s.Timeout)
					return err
				},
			},
		},
	}
}

// activityCount reads the number of entries in the extension's activity list.
// Zero entries is a valid answer, so this peeks without waiting.
func (s *Suite) activityCount(ctx context.Context) (int, error) {
	if err := s.Registry.SwitchTo(ctx, harness.RoleExtension); err != nil {
		return 0, err
	}
	if err := s.click(ctx, driver.TestID("tab-activity")); err != nil {
		return 0, err
	}
	if err := harness.Sleep(ctx, harness.RegularDelay); err != nil {
		return 0, err
	}
	els, err := s.D.FindElements(ctx, driver.TestID("activity-item"))
	if err != nil {
		return 0, err
	}
	return len(els), nil
}
