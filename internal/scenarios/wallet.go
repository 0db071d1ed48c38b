package scenarios

import (
	"context"
	"regexp"
	"strings"

	"github.com/lockbridge/walletrun/internal/driver"
	"github.com/lockbridge/walletrun/internal/harness"
)

var confirmedPattern = regexp.MustCompile(`(?i)confirmed`)

// LockUnlock locks the wallet from the account menu and unlocks it with the
// password captured during onboarding.
func (s *Suite) LockUnlock() harness.Group {
	return harness.Group{
		Name: "lock and unlock",
		Steps: []harness.Step{
			{
				Name: "lock wallet",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleExtension); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("account-menu")); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("account-menu-lock")); err != nil {
						return err
					}
					_, err := harness.Wait(ctx, s.D, driver.TestID("unlock-password"), harness.Visible(), s.Timeout)
					return err
				},
			},
			{
				Name: "reject wrong password",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.typeInto(ctx, driver.TestID("unlock-password"), "definitely-wrong"); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("unlock-submit")); err != nil {
						return err
					}
					_, err := harness.Wait(ctx, s.D, driver.TestID("unlock-error"), harness.Visible(), s.Timeout)
					return err
				},
			},
			{
				Name: "unlock with password",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.typeInto(ctx, driver.TestID("unlock-password"), st.Password); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("unlock-submit")); err != nil {
						return err
					}
					// Unlock kicks off vault decryption and background sync.
					if err := harness.Sleep(ctx, harness.LargeDelay); err != nil {
						return err
					}
					_, err := harness.Wait(ctx, s.D, driver.TestID("wallet-home"), harness.Visible(), s.Timeout)
					return err
				},
			},
		},
	}
}

// ImportFromSeed restores the wallet from the recorded seed phrase via the
// lock screen's recovery path and checks it reproduces the same account.
func (s *Suite) ImportFromSeed() harness.Group {
	return harness.Group{
		Name: "import from seed",
		Steps: []harness.Step{
			{
				Name: "open recovery from lock screen",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleExtension); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("account-menu")); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("account-menu-lock")); err != nil {
						return err
					}
					return s.click(ctx, driver.TestID("unlock-forgot-password"))
				},
			},
			{
				Name: "enter seed phrase",
				Run: func(ctx context.Context, st *harness.State) error {
					phrase := strings.Join(st.SeedPhrase, " ")
					if err := s.typeInto(ctx, driver.TestID("restore-seed-input"), phrase); err != nil {
						return err
					}
					if err := s.typeInto(ctx, driver.TestID("restore-password-new"), st.Password); err != nil {
						return err
					}
					if err := s.typeInto(ctx, driver.TestID("restore-password-confirm"), st.Password); err != nil {
						return err
					}
					return s.click(ctx, driver.TestID("restore-submit"))
				},
			},
			{
				Name: "verify restored account",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := harness.Sleep(ctx, harness.LargeDelay); err != nil {
						return err
					}
					if _, err := harness.Wait(ctx, s.D, driver.TestID("wallet-home"), harness.Visible(), s.Timeout); err != nil {
						return err
					}
					addr, err := s.text(ctx, driver.TestID("account-address"))
					if err != nil {
						return err
					}
					if got := strings.TrimSpace(addr); got != st.AccountAddress {
						return &harness.AssertionMismatchError{
							Subject: "restored account address",
							Want:    st.AccountAddress,
							Got:     got,
						}
					}
					return nil
				},
			},
		},
	}
}

// SendNative sends a native-currency transfer to the wallet's own address
// from the extension UI and waits for it to land in the activity list.
func (s *Suite) SendNative() harness.Group {
	return harness.Group{
		Name: "send native from extension",
		Steps: []harness.Step{
			{
				Name: "fill transfer form",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleExtension); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("wallet-send")); err != nil {
						return err
					}
					if err := s.typeInto(ctx, driver.TestID("send-recipient"), st.AccountAddress); err != nil {
						return err
					}
					if err := s.typeInto(ctx, driver.TestID("send-amount"), "1"); err != nil {
						return err
					}
					return s.click(ctx, driver.TestID("send-next"))
				},
			},
			{
				Name: "confirm transfer",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.click(ctx, driver.TestID("send-confirm")); err != nil {
						return err
					}
					// Submission hands off to the background; give the route
					// transition a beat before polling the activity list.
					return harness.Sleep(ctx, harness.RegularDelay)
				},
			},
			{
				Name: "verify activity entry",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.click(ctx, driver.TestID("tab-activity")); err != nil {
						return err
					}
					els, err := harness.WaitForElements(ctx, s.D, driver.TestID("activity-item"), 1, s.Timeout)
					if err != nil {
						return err
					}
					if len(els) != 1 {
						return &harness.AssertionMismatchError{
							Subject: "activity entries after first send",
							Want:    1,
							Got:     len(els),
						}
					}
					_, err = harness.Wait(ctx, s.D, driver.TestID("activity-item-status"),
						harness.TextMatches(confirmedPattern), s.Timeout)
					return err
				},
			},
		},
	}
}
