package harness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ConsoleMessage is one console log entry captured from a browser context.
type ConsoleMessage struct {
	Source    string    `json:"source"`
	Level     string    `json:"level"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FailureReport captures everything needed to reproduce the first failing
// step. Created on first failure only; the run aborts afterwards.
type FailureReport struct {
	RunID         string           `json:"run_id"`
	Group         string           `json:"group"`
	Step          string           `json:"step"`
	Failure       string           `json:"failure"`
	ConsoleErrors []ConsoleMessage `json:"console_errors,omitempty"`
	Screenshot    []byte           `json:"-"`
	CapturedAt    time.Time        `json:"captured_at"`
}

// Collector is the diagnostics capability consumed by the runner. Console
// collection is a drain: each call returns errors accumulated since the
// previous call.
type Collector interface {
	CollectConsoleErrors(ctx context.Context) []ConsoleMessage
	PersistFailureReport(ctx context.Context, report FailureReport) error
}

// Status tracks a step through its lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Step is the smallest orchestrated unit: perform actions and assertions
// against one browser context, communicating with later steps only through
// the shared state record.
type Step struct {
	Name string
	Run  func(ctx context.Context, st *State) error
}

// Group is an ordered set of steps exercising one coherent user flow. Groups
// are not isolated: later groups depend on state mutated by earlier ones.
type Group struct {
	Name  string
	Steps []Step
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	Group    string
	Step     string
	Status   Status
	Err      error
	Duration time.Duration
	// ConsoleErrors holds the non-fatal console errors drained after the
	// step; they are surfaced as warnings, never escalated.
	ConsoleErrors []ConsoleMessage
}

// Runner executes scenario groups strictly in declaration order on a single
// logical thread, bailing out on the first failed step.
type Runner struct {
	logger    *zap.Logger
	collector Collector
	// screenshot captures the active window for failure reports. Optional;
	// a nil func degrades the report, not the run.
	screenshot func(ctx context.Context) ([]byte, error)
	runID      string
}

// NewRunner builds a runner. screenshot may be nil.
func NewRunner(runID string, collector Collector, screenshot func(ctx context.Context) ([]byte, error), logger *zap.Logger) *Runner {
	return &Runner{
		logger:     logger.Named("runner"),
		collector:  collector,
		screenshot: screenshot,
		runID:      runID,
	}
}

// Run executes the groups against the shared state. It returns the results
// of every step that left Pending, and the first step failure (wrapped) if
// the run was aborted. No step runs after the first failure.
func (r *Runner) Run(ctx context.Context, st *State, groups []Group) ([]StepResult, error) {
	results := make([]StepResult, 0)

	for _, group := range groups {
		groupLog := r.logger.With(zap.String("group", group.Name))
		groupLog.Info("Scenario group starting.")

		for _, step := range group.Steps {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			res := r.runStep(ctx, st, group.Name, step)
			results = append(results, res)

			if res.Status == StatusFailed {
				r.persistFailure(ctx, group.Name, step.Name, res)
				return results, fmt.Errorf("step %q in group %q failed: %w", step.Name, group.Name, res.Err)
			}
		}
		groupLog.Info("Scenario group passed.")
	}
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, st *State, group string, step Step) StepResult {
	log := r.logger.With(zap.String("group", group), zap.String("step", step.Name))
	res := StepResult{Group: group, Step: step.Name, Status: StatusRunning}

	log.Info("Step running.")
	start := time.Now()
	err := step.Run(ctx, st)
	res.Duration = time.Since(start)

	// Drain console errors regardless of outcome. They are warnings: the
	// extension emits benign noise unrelated to the behavior under test, and
	// escalating it would produce false negatives.
	if r.collector != nil {
		res.ConsoleErrors = r.collector.CollectConsoleErrors(ctx)
		for _, msg := range res.ConsoleErrors {
			log.Warn("Console error during step.",
				zap.String("source", msg.Source),
				zap.String("text", msg.Text))
		}
	}

	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		log.Error("Step failed.", zap.Duration("duration", res.Duration), zap.Error(err))
		return res
	}

	res.Status = StatusPassed
	log.Info("Step passed.", zap.Duration("duration", res.Duration))
	return res
}

func (r *Runner) persistFailure(ctx context.Context, group, step string, res StepResult) {
	if r.collector == nil {
		return
	}
	report := FailureReport{
		RunID:         r.runID,
		Group:         group,
		Step:          step,
		Failure:       res.Err.Error(),
		ConsoleErrors: res.ConsoleErrors,
		CapturedAt:    time.Now().UTC(),
	}
	if r.screenshot != nil {
		shot, err := r.screenshot(ctx)
		if err != nil {
			r.logger.Warn("Failed to capture failure screenshot.", zap.Error(err))
		} else {
			report.Screenshot = shot
		}
	}
	if err := r.collector.PersistFailureReport(ctx, report); err != nil {
		r.logger.Error("Failed to persist failure report.", zap.Error(err))
	}
}
