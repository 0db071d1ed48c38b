package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/lockbridge/walletrun/internal/harness"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Collector implements the harness diagnostics capability: drained console
// errors plus on-disk failure reports (JSON next to a PNG screenshot).
type Collector struct {
	console      *ConsoleCollector
	artifactsDir string
	logger       *zap.Logger
}

var _ harness.Collector = (*Collector)(nil)

// NewCollector wires a console collector to an artifacts directory.
func NewCollector(console *ConsoleCollector, artifactsDir string, logger *zap.Logger) *Collector {
	return &Collector{
		console:      console,
		artifactsDir: artifactsDir,
		logger:       logger.Named("diagnostics"),
	}
}

// CollectConsoleErrors drains console errors accumulated since the last call.
func (c *Collector) CollectConsoleErrors(_ context.Context) []harness.ConsoleMessage {
	return c.console.Drain()
}

// PersistFailureReport writes the report JSON and, when present, the
// screenshot under artifacts/<run-id>/.
func (c *Collector) PersistFailureReport(_ context.Context, report harness.FailureReport) error {
	dir := filepath.Join(c.artifactsDir, report.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifacts dir: %w", err)
	}

	base := sanitizeFilename(report.Group + "-" + report.Step)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal failure report: %w", err)
	}
	reportPath := filepath.Join(dir, base+".json")
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write failure report: %w", err)
	}

	if len(report.Screenshot) > 0 {
		shotPath := filepath.Join(dir, base+".png")
		if err := os.WriteFile(shotPath, report.Screenshot, 0o644); err != nil {
			return fmt.Errorf("failed to write failure screenshot: %w", err)
		}
	}

	c.logger.Info("Failure report persisted.",
		zap.String("report", reportPath),
		zap.Int("console_errors", len(report.ConsoleErrors)))
	return nil
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", ":", "-", `"`, "", "'", "")
	return replacer.Replace(strings.ToLower(name))
}
