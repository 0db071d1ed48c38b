package reporting

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/lockbridge/walletrun/internal/harness"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONReporter renders the run summary as a single JSON document.
type JSONReporter struct {
	writer io.WriteCloser
}

// NewJSONReporter takes ownership of the writer.
func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: w}
}

// jsonStep is the serializable view of a step result; the raw error is
// flattened into a string.
type jsonStep struct {
	Group         string                   `json:"group"`
	Step          string                   `json:"step"`
	Status        harness.Status           `json:"status"`
	Error         string                   `json:"error,omitempty"`
	DurationMS    int64                    `json:"duration_ms"`
	ConsoleErrors []harness.ConsoleMessage `json:"console_errors,omitempty"`
}

type jsonSummary struct {
	RunID    string     `json:"run_id"`
	Browser  string     `json:"browser"`
	Started  time.Time  `json:"started"`
	Finished time.Time  `json:"finished"`
	Passed   bool       `json:"passed"`
	Steps    []jsonStep `json:"steps"`
}

func (r *JSONReporter) Write(summary *RunSummary) error {
	out := jsonSummary{
		RunID:    summary.RunID,
		Browser:  summary.Browser,
		Started:  summary.Started,
		Finished: summary.Finished,
		Passed:   summary.Passed,
		Steps:    make([]jsonStep, 0, len(summary.Results)),
	}
	for _, res := range summary.Results {
		step := jsonStep{
			Group:         res.Group,
			Step:          res.Step,
			Status:        res.Status,
			DurationMS:    res.Duration.Milliseconds(),
			ConsoleErrors: res.ConsoleErrors,
		}
		if res.Err != nil {
			step.Error = res.Err.Error()
		}
		out.Steps = append(out.Steps, step)
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("failed to write json report: %w", err)
	}
	return nil
}

func (r *JSONReporter) Close() error {
	return r.writer.Close()
}
