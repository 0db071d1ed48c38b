package harness

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lockbridge/walletrun/internal/driver"
)

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{
		Locator:   driver.TestID("wallet-home"),
		Condition: "visible",
		Timeout:   10 * time.Second,
		Last:      driver.ErrNotFound,
	}
	assert.Contains(t, err.Error(), `testid="wallet-home"`)
	assert.Contains(t, err.Error(), "visible")
	assert.Contains(t, err.Error(), "10s")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestAssertionMismatchErrorDiff(t *testing.T) {
	err := &AssertionMismatchError{Subject: "transaction count", Want: 2, Got: 1}
	assert.Contains(t, err.Error(), "transaction count")
	assert.Contains(t, err.Error(), "-want +got")
}

func TestExtensionLifecycleErrorUnwrap(t *testing.T) {
	second := errors.New("still broken")
	err := &ExtensionLifecycleError{Original: errors.New("first"), AfterRecovery: second}
	assert.ErrorIs(t, err, second)
	assert.Contains(t, err.Error(), "after extension reload")
}
