package reporting_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockbridge/walletrun/internal/harness"
	"github.com/lockbridge/walletrun/internal/reporting"
)

type closeBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *closeBuffer) Close() error {
	b.closed = true
	return nil
}

func sampleSummary() *reporting.RunSummary {
	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	return &reporting.RunSummary{
		RunID:    "run-42",
		Browser:  "chrome",
		Started:  started,
		Finished: started.Add(90 * time.Second),
		Passed:   false,
		Results: []harness.StepResult{
			{Group: "onboarding", Step: "set password", Status: harness.StatusPassed, Duration: 1200 * time.Millisecond},
			{Group: "onboarding", Step: "confirm seed", Status: harness.StatusPassed, Duration: 3 * time.Second,
				ConsoleErrors: []harness.ConsoleMessage{{Source: "extension", Level: "error", Text: "benign noise"}}},
			{Group: "dapp send", Step: "approve transaction", Status: harness.StatusFailed, Duration: 10 * time.Second,
				Err: errors.New("timed out waiting for notification window")},
		},
	}
}

func TestNew_UnsupportedFormat(t *testing.T) {
	r, err := reporting.New("yaml", "")
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestNew_JUnit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xml")

	r, err := reporting.New("junit", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleSummary()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<testsuites")
}

func TestJUnitReporter_Structure(t *testing.T) {
	buf := &closeBuffer{}
	r := reporting.NewJUnitReporter(buf)
	require.NoError(t, r.Write(sampleSummary()))
	require.NoError(t, r.Close())
	assert.True(t, buf.closed)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	suites := doc.SelectElement("testsuites")
	require.NotNil(t, suites)
	assert.Equal(t, "3", suites.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", suites.SelectAttrValue("failures", ""))
	assert.Equal(t, "run-42", suites.SelectAttrValue("id", ""))

	suiteEls := suites.SelectElements("testsuite")
	require.Len(t, suiteEls, 2)
	assert.Equal(t, "onboarding", suiteEls[0].SelectAttrValue("name", ""))
	assert.Equal(t, "dapp send", suiteEls[1].SelectAttrValue("name", ""))

	// The failing case carries a <failure> element with the error message.
	failing := suiteEls[1].SelectElements("testcase")
	require.Len(t, failing, 1)
	failure := failing[0].SelectElement("failure")
	require.NotNil(t, failure)
	assert.Contains(t, failure.SelectAttrValue("message", ""), "timed out")

	// Console errors surface as system-err, not as failures.
	withNoise := suiteEls[0].SelectElements("testcase")[1]
	require.NotNil(t, withNoise.SelectElement("system-err"))
	assert.Nil(t, withNoise.SelectElement("failure"))
}

func TestJSONReporter(t *testing.T) {
	buf := &closeBuffer{}
	r := reporting.NewJSONReporter(buf)
	require.NoError(t, r.Write(sampleSummary()))
	require.NoError(t, r.Close())

	var out struct {
		RunID  string `json:"run_id"`
		Passed bool   `json:"passed"`
		Steps  []struct {
			Step   string `json:"step"`
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"steps"`
	}
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "run-42", out.RunID)
	assert.False(t, out.Passed)
	require.Len(t, out.Steps, 3)
	assert.Equal(t, "passed", out.Steps[0].Status)
	assert.Empty(t, out.Steps[0].Error)
	assert.Equal(t, "failed", out.Steps[2].Status)
	assert.Contains(t, out.Steps[2].Error, "timed out")
}
