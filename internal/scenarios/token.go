package scenarios

import (
	"context"
	"regexp"
	"strings"

	"github.com/lockbridge/walletrun/internal/driver"
	"github.com/lockbridge/walletrun/internal/harness"
)

const testTokenSymbol = "TST"

// CustomToken deploys a token contract from the dapp, imports it into the
// wallet by address, and transfers it from the dapp page.
func (s *Suite) CustomToken() harness.Group {
	return harness.Group{
		Name: "custom token",
		Steps: []harness.Step{
			{
				Name: "create token from dapp",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleDapp); err != nil {
						return err
					}
					if err := s.click(ctx, driver.Css("#create-token")); err != nil {
						return err
					}
					if err := s.approveNotification(ctx, dappWindows, driver.TestID("tx-confirm")); err != nil {
						return err
					}
					addr, err := s.waitText(ctx, driver.Css("#token-address"), addressPattern)
					if err != nil {
						return err
					}
					st.TokenAddress = addr
					st.TokenSymbol = testTokenSymbol
					return nil
				},
			},
			{
				Name: "import token into wallet",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleExtension); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("tab-assets")); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("import-token")); err != nil {
						return err
					}
					if err := s.typeInto(ctx, driver.TestID("import-token-address"), st.TokenAddress); err != nil {
						return err
					}
					// The symbol field autofills from the contract; wait for it
					// rather than typing over a pending lookup.
					if _, err := harness.Wait(ctx, s.D, driver.TestID("import-token-symbol"),
						harness.TextMatches(tokenSymbolPattern), s.Timeout); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("import-token-submit")); err != nil {
						return err
					}
					_, err := harness.Wait(ctx, s.D, tokenRow(st.TokenSymbol), harness.Visible(), s.Timeout)
					return err
				},
			},
			{
				Name: "transfer token from dapp",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleDapp); err != nil {
						return err
					}
					if err := s.click(ctx, driver.Css("#transfer-token")); err != nil {
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

// HideToken removes the imported token from the asset list and verifies the
// row disappears.
func (s *Suite) HideToken() harness.Group {
	return harness.Group{
		Name: "hide token",
		Steps: []harness.Step{
			{
				Name: "hide imported token",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.Registry.SwitchTo(ctx, harness.RoleExtension); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("tab-assets")); err != nil {
						return err
					}
					if err := s.click(ctx, tokenRowMenu(st.TokenSymbol)); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("token-menu-hide")); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("token-hide-confirm")); err != nil {
						return err
					}
					_, err := harness.Wait(ctx, s.D, tokenRow(st.TokenSymbol), harness.Stale(), s.Timeout)
					return err
				},
			},
			{
				Name: "close auxiliary windows",
				Run: func(ctx context.Context, st *harness.State) error {
					// End of the run: collapse back to the extension window only.
					return s.Registry.CloseAllExcept(ctx, harness.RoleExtension)
				},
			},
		},
	}
}

var tokenSymbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)

// tokenRow locates the asset-list row for a symbol.
func tokenRow(symbol string) driver.Locator {
	return driver.TestID("token-row-" + strings.ToLower(symbol))
}

// tokenRowMenu locates the row's overflow menu button.
func tokenRowMenu(symbol string) driver.Locator {
	return driver.TestID("token-row-menu-" + strings.ToLower(symbol))
}
