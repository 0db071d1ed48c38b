package harness

import (
	"context"
	"fmt"
	"testing"

	gofuzzheaders "github.com/AdaLogics/go-fuzz-headers"

	"github.com/lockbridge/walletrun/internal/driver"
)

// FuzzRegistryRefresh throws arbitrary window titles and URLs at the registry
// and checks its structural invariants hold for any classification outcome.
func FuzzRegistryRefresh(f *testing.F) {
	f.Add([]byte("Lockbridge Wallet Notification\x00chrome-extension://abcdef/home.html"))
	f.Add([]byte("Walletrun Test Dapp\x00http://127.0.0.1:1/"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		fz := gofuzzheaders.NewConsumer(data)

		n, err := fz.GetInt()
		if err != nil {
			return
		}
		if n < 0 {
			n = -n
		}
		n = n % 6

		d := newFakeDriver()
		for i := 0; i < n; i++ {
			title, err := fz.GetString()
			if err != nil {
				return
			}
			url, err := fz.GetString()
			if err != nil {
				return
			}
			d.addWindow(driver.Handle(fmt.Sprintf("w-%d", i)), title, url)
		}

		r := newTestRegistry(d)
		if _, _, err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh failed on fake driver: %v", err)
		}
		// A second refresh over an unchanged window set must not move roles.
		rolesBefore := map[Role]driver.Handle{}
		for _, role := range []Role{RoleExtension, RoleDapp, RoleNotification} {
			if h, ok := r.Handle(role); ok {
				rolesBefore[role] = h
			}
		}
		if _, _, err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("second refresh failed: %v", err)
		}

		seen := map[driver.Handle]bool{}
		for _, role := range []Role{RoleExtension, RoleDapp, RoleNotification} {
			h, ok := r.Handle(role)
			if !ok {
				if _, had := rolesBefore[role]; had {
					t.Fatalf("role %s lost its handle on an unchanged window set", role)
				}
				continue
			}
			if rolesBefore[role] != h {
				t.Fatalf("role %s moved from %s to %s without a window change", role, rolesBefore[role], h)
			}
			if seen[h] {
				t.Fatalf("handle %s registered under two roles", h)
			}
			seen[h] = true
		}

		for _, h := range r.Handles() {
			role, err := r.Classify(context.Background(), h)
			if err != nil {
				t.Fatalf("classify of tracked handle failed: %v", err)
			}
			switch role {
			case RoleExtension, RoleDapp, RoleNotification, RoleOther:
			default:
				t.Fatalf("classification produced unknown role %q", role)
			}
		}
	})
}
