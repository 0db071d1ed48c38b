package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lockbridge/walletrun/internal/driver"
)

// Role is the semantic label assigned to a browser context.
type Role string

const (
	RoleExtension    Role = "extension"
	RoleDapp         Role = "dapp"
	RoleNotification Role = "notification"
	RoleOther        Role = "other"
)

// Patterns holds the title/URL signatures used to classify windows. They come
// from configuration because the extension ID is only known after install.
type Patterns struct {
	// ExtensionURLPrefix matches the wallet's own pages,
	// e.g. "chrome-extension://<id>".
	ExtensionURLPrefix string
	// DappTitle is the page title of the third-party test page.
	DappTitle string
	// NotificationTitle is the title of the wallet's approval popup.
	NotificationTitle string
}

// Registry tracks open window handles and their roles. It is the single
// source of truth for role-based window selection; steps never hold raw
// handles across suspension points. The harness runs on a single logical
// thread; the registry carries no locking.
type Registry struct {
	d        driver.Driver
	logger   *zap.Logger
	patterns Patterns

	// roles maps each non-other role to at most one live handle.
	roles map[Role]driver.Handle
	// known records the role of every tracked handle, including others.
	known map[driver.Handle]Role
}

// NewRegistry creates an empty registry. Call Refresh before the first
// lookup.
func NewRegistry(d driver.Driver, patterns Patterns, logger *zap.Logger) *Registry {
	return &Registry{
		d:        d,
		logger:   logger.Named("registry"),
		patterns: patterns,
		roles:    make(map[Role]driver.Handle),
		known:    make(map[driver.Handle]Role),
	}
}

// Refresh re-reads the full handle set from the driver. Stale entries are
// purged before new handles are classified, so a closed notification can
// never shadow a freshly spawned one. It returns the current and previous
// handle sets so callers can compute appearances and disappearances.
func (r *Registry) Refresh(ctx context.Context) (current, previous []driver.Handle, err error) {
	handles, err := r.d.GetAllWindowHandles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list windows: %w", err)
	}

	previous = make([]driver.Handle, 0, len(r.known))
	for h := range r.known {
		previous = append(previous, h)
	}

	live := make(map[driver.Handle]bool, len(handles))
	for _, h := range handles {
		live[h] = true
	}

	// Purge first.
	for h, role := range r.known {
		if !live[h] {
			delete(r.known, h)
			if role != RoleOther && r.roles[role] == h {
				delete(r.roles, role)
			}
			r.logger.Debug("Window closed.", zap.String("handle", string(h)), zap.String("role", string(role)))
		}
	}

	// Then classify newcomers.
	for _, h := range handles {
		if _, ok := r.known[h]; ok {
			continue
		}
		role := r.classify(ctx, h)
		if role != RoleOther {
			if _, taken := r.roles[role]; taken {
				// Role collision means purge did not run or two candidates
				// coexist; the later one stays unclassified.
				r.logger.Warn("Role already assigned; keeping new window as other.",
					zap.String("role", string(role)), zap.String("handle", string(h)))
				role = RoleOther
			} else {
				r.roles[role] = h
			}
		}
		r.known[h] = role
		r.logger.Debug("Window classified.", zap.String("handle", string(h)), zap.String("role", string(role)))
	}

	return handles, previous, nil
}

// Classify reports the role of a handle, refreshing the registry first so the
// answer reflects the live window set. Classification is idempotent for an
// unchanged handle.
func (r *Registry) Classify(ctx context.Context, h driver.Handle) (Role, error) {
	if _, _, err := r.Refresh(ctx); err != nil {
		return RoleOther, err
	}
	role, ok := r.known[h]
	if !ok {
		return RoleOther, fmt.Errorf("%w: %s", driver.ErrStaleHandle, h)
	}
	return role, nil
}

// classify inspects one handle's URL and title against the known patterns.
// Misses fall back to RoleOther; a handle that closes mid-inspection does
// too, and the next Refresh purges it.
func (r *Registry) classify(ctx context.Context, h driver.Handle) Role {
	url, err := r.d.WindowURL(ctx, h)
	if err == nil && r.patterns.ExtensionURLPrefix != "" && strings.HasPrefix(url, r.patterns.ExtensionURLPrefix) {
		title, terr := r.d.WindowTitle(ctx, h)
		if terr == nil && r.patterns.NotificationTitle != "" && strings.Contains(title, r.patterns.NotificationTitle) {
			return RoleNotification
		}
		return RoleExtension
	}

	title, err := r.d.WindowTitle(ctx, h)
	if err != nil {
		return RoleOther
	}
	switch {
	case r.patterns.NotificationTitle != "" && strings.Contains(title, r.patterns.NotificationTitle):
		return RoleNotification
	case r.patterns.DappTitle != "" && strings.Contains(title, r.patterns.DappTitle):
		return RoleDapp
	default:
		return RoleOther
	}
}

// Handle looks up the live handle for a role.
func (r *Registry) Handle(role Role) (driver.Handle, bool) {
	h, ok := r.roles[role]
	return h, ok
}

// Handles returns every tracked handle.
func (r *Registry) Handles() []driver.Handle {
	out := make([]driver.Handle, 0, len(r.known))
	for h := range r.known {
		out = append(out, h)
	}
	return out
}

// SwitchTo activates the window registered under role. The registry refreshes
// first so a stale handle is never handed to the driver.
func (r *Registry) SwitchTo(ctx context.Context, role Role) error {
	if _, _, err := r.Refresh(ctx); err != nil {
		return err
	}
	h, ok := r.roles[role]
	if !ok {
		return &UnknownRoleError{Role: role}
	}
	if err := r.d.SwitchToWindow(ctx, h); err != nil {
		return fmt.Errorf("failed to switch to %s window: %w", role, err)
	}
	return nil
}

// WaitForCount polls (at the wait primitive's interval) until exactly n
// windows are open. Used after actions known to spawn or close a context,
// such as a dapp permission request opening the notification popup.
func (r *Registry) WaitForCount(ctx context.Context, n int, timeout time.Duration) ([]driver.Handle, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		current, _, err := r.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		if len(current) == n {
			return current, nil
		}
		if time.Now().After(deadline) {
			return nil, &TimeoutError{
				Locator:   driver.Locator{By: "window-count", Value: fmt.Sprintf("%d", n)},
				Condition: fmt.Sprintf("window count == %d (have %d)", n, len(current)),
				Timeout:   timeout,
			}
		}
		if err := Sleep(ctx, PollInterval); err != nil {
			return nil, err
		}
	}
}

// CloseAllExcept closes every tracked window whose role is not in keep, then
// activates one of the survivors (preferring keep order). It fails with
// NoSurvivingContextError before closing anything if the keep-set resolves to
// no live window.
func (r *Registry) CloseAllExcept(ctx context.Context, keep ...Role) error {
	if _, _, err := r.Refresh(ctx); err != nil {
		return err
	}

	keepSet := make(map[Role]bool, len(keep))
	for _, role := range keep {
		keepSet[role] = true
	}

	var survivor driver.Handle
	for _, role := range keep {
		if h, ok := r.roles[role]; ok {
			survivor = h
			break
		}
	}
	if survivor == "" {
		return &NoSurvivingContextError{Kept: keep}
	}

	for h, role := range r.known {
		if keepSet[role] {
			continue
		}
		if err := r.d.CloseWindow(ctx, h); err != nil {
			r.logger.Warn("Failed to close window; it may already be gone.",
				zap.String("handle", string(h)), zap.Error(err))
		}
	}

	if _, _, err := r.Refresh(ctx); err != nil {
		return err
	}
	if err := r.d.SwitchToWindow(ctx, survivor); err != nil {
		return fmt.Errorf("failed to activate surviving window: %w", err)
	}
	return nil
}
