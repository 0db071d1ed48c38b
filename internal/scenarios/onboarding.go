package scenarios

import (
	"context"
	"fmt"
	"strings"

	"github.com/lockbridge/walletrun/internal/driver"
	"github.com/lockbridge/walletrun/internal/harness"
)

const seedWordCount = 12

// Onboarding walks the first-run wizard: password, seed reveal, seed retype,
// completion. The retype step runs under the recovery strategy because the
// extension's background lifecycle can tear the wizard view down mid-flow.
func (s *Suite) Onboarding() harness.Group {
	return harness.Group{
		Name: "onboarding",
		Steps: []harness.Step{
			{
				Name: "open extension",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.openExtensionUI(ctx); err != nil {
						return err
					}
					// The first refresh after navigation learns the extension
					// window's role.
					_, _, err := s.Registry.Refresh(ctx)
					return err
				},
			},
			{
				Name: "create password",
				Run: func(ctx context.Context, st *harness.State) error {
					st.Password = s.Password
					if err := s.click(ctx, driver.TestID("onboarding-get-started")); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("onboarding-create-wallet")); err != nil {
						return err
					}
					if err := s.typeInto(ctx, driver.TestID("create-password-new"), st.Password); err != nil {
						return err
					}
					if err := s.typeInto(ctx, driver.TestID("create-password-confirm"), st.Password); err != nil {
						return err
					}
					if err := s.click(ctx, driver.TestID("create-password-terms")); err != nil {
						return err
					}
					return s.click(ctx, driver.TestID("create-password-submit"))
				},
			},
			{
				Name: "reveal seed phrase",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.click(ctx, driver.TestID("seed-reveal")); err != nil {
						return err
					}
					els, err := harness.WaitForElements(ctx, s.D, driver.TestID("seed-word"), seedWordCount, s.Timeout)
					if err != nil {
						return err
					}
					words := make([]string, 0, len(els))
					for _, el := range els {
						w, err := el.Text(ctx)
						if err != nil {
							return err
						}
						words = append(words, strings.TrimSpace(w))
					}
					if len(words) != seedWordCount {
						return &harness.AssertionMismatchError{
							Subject: "seed phrase length",
							Want:    seedWordCount,
							Got:     len(words),
						}
					}
					st.SeedPhrase = words
					return s.click(ctx, driver.TestID("seed-reveal-next"))
				},
			},
			{
				Name: "confirm seed phrase",
				Run: func(ctx context.Context, st *harness.State) error {
					// The probe is the app root, which renders on both the wizard
					// and the post-reload home screen. The action itself times
					// out if the wizard view was torn down, triggering the
					// single reload-and-retry.
					return s.Recovery.Do(ctx, driver.TestID("app-root"),
						func(ctx context.Context, recovered bool) error {
							if recovered {
								// The reload landed on the wallet home; walk back
								// into the confirmation screen.
								if err := s.click(ctx, driver.TestID("seed-reveal")); err != nil {
									return err
								}
								if err := s.click(ctx, driver.TestID("seed-reveal-next")); err != nil {
									return err
								}
							}
							for i, word := range st.SeedPhrase {
								loc := driver.TestID(fmt.Sprintf("seed-confirm-input-%d", i))
								if err := s.typeInto(ctx, loc, word); err != nil {
									return err
								}
							}
							if err := s.click(ctx, driver.TestID("seed-confirm-submit")); err != nil {
								return err
							}
							_, err := harness.Wait(ctx, s.D, driver.TestID("onboarding-complete"), harness.Visible(), s.Timeout)
							return err
						})
				},
			},
			{
				Name: "finish onboarding",
				Run: func(ctx context.Context, st *harness.State) error {
					if err := s.click(ctx, driver.TestID("onboarding-done")); err != nil {
						return err
					}
					if _, err := harness.Wait(ctx, s.D, driver.TestID("wallet-home"), harness.Visible(), s.Timeout); err != nil {
						return err
					}
					addr, err := s.text(ctx, driver.TestID("account-address"))
					if err != nil {
						return err
					}
					st.AccountAddress = strings.TrimSpace(addr)
					name, err := s.text(ctx, driver.TestID("account-name"))
					if err != nil {
						return err
					}
					st.AccountName = strings.TrimSpace(name)
					return nil
				},
			},
		},
	}
}
