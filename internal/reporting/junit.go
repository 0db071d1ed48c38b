package reporting

import (
	"fmt"
	"io"

	"github.com/beevik/etree"

	"github.com/lockbridge/walletrun/internal/harness"
)

// JUnitReporter renders the run as a JUnit style <testsuites> document, one
// <testsuite> per scenario group and one <testcase> per step. Steps that never
// ran because the run aborted do not appear; absence from the report marks
// them unreached.
type JUnitReporter struct {
	writer io.WriteCloser
}

// NewJUnitReporter takes ownership of the writer.
func NewJUnitReporter(w io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

func (r *JUnitReporter) Write(summary *RunSummary) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", "walletrun")
	suites.CreateAttr("time", fmt.Sprintf("%.3f", summary.Duration().Seconds()))
	if summary.RunID != "" {
		suites.CreateAttr("id", summary.RunID)
	}

	grouped := groupResults(summary.Results)
	totalTests, totalFailures := 0, 0

	for _, g := range grouped {
		suite := suites.CreateElement("testsuite")
		suite.CreateAttr("name", g.name)

		var elapsed float64
		failures := 0
		for _, res := range g.results {
			elapsed += res.Duration.Seconds()

			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", res.Step)
			tc.CreateAttr("classname", g.name)
			tc.CreateAttr("time", fmt.Sprintf("%.3f", res.Duration.Seconds()))

			if res.Status == harness.StatusFailed {
				failures++
				failure := tc.CreateElement("failure")
				failure.CreateAttr("message", res.Err.Error())
			}
			for _, msg := range res.ConsoleErrors {
				out := tc.CreateElement("system-err")
				out.SetText(fmt.Sprintf("[%s] %s", msg.Source, msg.Text))
			}
		}

		suite.CreateAttr("tests", fmt.Sprintf("%d", len(g.results)))
		suite.CreateAttr("failures", fmt.Sprintf("%d", failures))
		suite.CreateAttr("time", fmt.Sprintf("%.3f", elapsed))

		totalTests += len(g.results)
		totalFailures += failures
	}

	suites.CreateAttr("tests", fmt.Sprintf("%d", totalTests))
	suites.CreateAttr("failures", fmt.Sprintf("%d", totalFailures))

	doc.Indent(2)
	if _, err := doc.WriteTo(r.writer); err != nil {
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return nil
}

func (r *JUnitReporter) Close() error {
	return r.writer.Close()
}

type resultGroup struct {
	name    string
	results []harness.StepResult
}

// groupResults buckets results by group, preserving execution order.
func groupResults(results []harness.StepResult) []resultGroup {
	var grouped []resultGroup
	index := make(map[string]int)
	for _, res := range results {
		i, ok := index[res.Group]
		if !ok {
			i = len(grouped)
			index[res.Group] = i
			grouped = append(grouped, resultGroup{name: res.Group})
		}
		grouped[i].results = append(grouped[i].results, res)
	}
	return grouped
}
