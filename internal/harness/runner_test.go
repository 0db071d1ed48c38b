package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCollector records runner interactions and feeds queued console errors.
type fakeCollector struct {
	queued     [][]ConsoleMessage
	drains     int
	persisted  []FailureReport
	persistErr error
}

func (c *fakeCollector) CollectConsoleErrors(context.Context) []ConsoleMessage {
	c.drains++
	if len(c.queued) == 0 {
		return nil
	}
	out := c.queued[0]
	c.queued = c.queued[1:]
	return out
}

func (c *fakeCollector) PersistFailureReport(_ context.Context, report FailureReport) error {
	c.persisted = append(c.persisted, report)
	return c.persistErr
}

func step(name string, fn func(ctx context.Context, st *State) error) Step {
	return Step{Name: name, Run: fn}
}

func recordStep(name string, log *[]string) Step {
	return step(name, func(context.Context, *State) error {
		*log = append(*log, name)
		return nil
	})
}

func TestRunnerExecutesInDeclarationOrder(t *testing.T) {
	var order []string
	groups := []Group{
		{Name: "first", Steps: []Step{recordStep("a", &order), recordStep("b", &order)}},
		{Name: "second", Steps: []Step{recordStep("c", &order)}},
	}

	r := NewRunner("run-1", &fakeCollector{}, nil, zap.NewNop())
	results, err := r.Run(context.Background(), &State{}, groups)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.Equal(t, StatusPassed, res.Status)
	}
}

func TestRunnerFailFast(t *testing.T) {
	var order []string
	boom := errors.New("element never appeared")
	groups := []Group{
		{Name: "g1", Steps: []Step{
			recordStep("ok", &order),
			step("fails", func(context.Context, *State) error { return boom }),
			recordStep("unreached-step", &order),
		}},
		{Name: "g2", Steps: []Step{recordStep("unreached-group", &order)}},
	}

	collector := &fakeCollector{}
	r := NewRunner("run-1", collector, nil, zap.NewNop())
	results, err := r.Run(context.Background(), &State{}, groups)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `step "fails" in group "g1"`)

	assert.Equal(t, []string{"ok"}, order, "no step may run after the first failure")
	require.Len(t, results, 2)
	assert.Equal(t, StatusPassed, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
}

func TestRunnerPersistsFailureReport(t *testing.T) {
	boom := errors.New("boom")
	collector := &fakeCollector{
		queued: [][]ConsoleMessage{
			{{Source: "ext", Level: "error", Text: "noise"}},
		},
	}
	screenshot := func(context.Context) ([]byte, error) { return []byte("png"), nil }

	groups := []Group{{Name: "g", Steps: []Step{
		step("s", func(context.Context, *State) error { return boom }),
	}}}

	r := NewRunner("run-7", collector, screenshot, zap.NewNop())
	_, err := r.Run(context.Background(), &State{}, groups)
	require.Error(t, err)

	require.Len(t, collector.persisted, 1)
	report := collector.persisted[0]
	assert.Equal(t, "run-7", report.RunID)
	assert.Equal(t, "g", report.Group)
	assert.Equal(t, "s", report.Step)
	assert.Equal(t, "boom", report.Failure)
	assert.Equal(t, []byte("png"), report.Screenshot)
	require.Len(t, report.ConsoleErrors, 1)
	assert.Equal(t, "noise", report.ConsoleErrors[0].Text)
	assert.False(t, report.CapturedAt.IsZero())
}

func TestRunnerConsoleErrorsAreWarningsNotFailures(t *testing.T) {
	collector := &fakeCollector{
		queued: [][]ConsoleMessage{
			{{Source: "ext", Level: "error", Text: "benign"}},
			nil,
		},
	}
	groups := []Group{{Name: "g", Steps: []Step{
		step("noisy", func(context.Context, *State) error { return nil }),
		step("quiet", func(context.Context, *State) error { return nil }),
	}}}

	r := NewRunner("run-1", collector, nil, zap.NewNop())
	results, err := r.Run(context.Background(), &State{}, groups)
	require.NoError(t, err, "console errors must never fail a step")

	assert.Equal(t, 2, collector.drains, "console errors drain after every step")
	require.Len(t, results, 2)
	assert.Equal(t, StatusPassed, results[0].Status)
	require.Len(t, results[0].ConsoleErrors, 1)
	assert.Empty(t, results[1].ConsoleErrors)
	assert.Empty(t, collector.persisted)
}

func TestRunnerSharedStateThreading(t *testing.T) {
	groups := []Group{
		{Name: "writer", Steps: []Step{
			step("write", func(_ context.Context, st *State) error {
				st.AccountAddress = "0xabc"
				return nil
			}),
		}},
		{Name: "reader", Steps: []Step{
			step("read", func(_ context.Context, st *State) error {
				if st.AccountAddress != "0xabc" {
					return &AssertionMismatchError{Subject: "account address", Want: "0xabc", Got: st.AccountAddress}
				}
				return nil
			}),
		}},
	}

	r := NewRunner("run-1", &fakeCollector{}, nil, zap.NewNop())
	_, err := r.Run(context.Background(), &State{}, groups)
	assert.NoError(t, err)
}

func TestRunnerAssertionMismatchPropagates(t *testing.T) {
	groups := []Group{{Name: "dapp send", Steps: []Step{
		step("verify transaction count", func(context.Context, *State) error {
			return &AssertionMismatchError{Subject: "dapp-initiated transaction count", Want: 2, Got: 1}
		}),
	}}}

	r := NewRunner("run-1", &fakeCollector{}, nil, zap.NewNop())
	_, err := r.Run(context.Background(), &State{}, groups)
	require.Error(t, err)

	var mismatch *AssertionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Want)
	assert.Equal(t, 1, mismatch.Got)
}

func TestRunnerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	groups := []Group{{Name: "g", Steps: []Step{
		step("cancels", func(context.Context, *State) error {
			cancel()
			return nil
		}),
		step("unreached", func(context.Context, *State) error {
			t.Fatal("step ran after cancellation")
			return nil
		}),
	}}}

	r := NewRunner("run-1", &fakeCollector{}, nil, zap.NewNop())
	_, err := r.Run(ctx, &State{}, groups)
	assert.ErrorIs(t, err, context.Canceled)
}
