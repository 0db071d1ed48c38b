// Package reporting renders a finished scenario run into machine readable
// output, either a JUnit style XML file for CI ingestion or a JSON summary.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lockbridge/walletrun/internal/harness"
)

// RunSummary is the flattened outcome of one harness run.
type RunSummary struct {
	RunID    string
	Browser  string
	Started  time.Time
	Finished time.Time
	Passed   bool
	Results  []harness.StepResult
}

// Duration reports the wall clock span of the run.
func (s *RunSummary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// Reporter renders a run summary into some output format.
type Reporter interface {
	// Write renders the summary. A reporter is single use.
	Write(summary *RunSummary) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path or the literal "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "junit":
		// NewJUnitReporter takes ownership of the writer.
		return NewJUnitReporter(writer), nil
	case "json":
		return NewJSONReporter(writer), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
