package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lockbridge/walletrun/internal/config"
	"github.com/lockbridge/walletrun/internal/harness"
	"github.com/lockbridge/walletrun/internal/observability"
	"github.com/lockbridge/walletrun/internal/reporting"
	"github.com/lockbridge/walletrun/internal/scenarios"
	"github.com/lockbridge/walletrun/internal/session"
	"github.com/lockbridge/walletrun/internal/store"
)

const teardownTimeout = 30 * time.Second

// newRunCmd creates the `run` command, which executes the full scenario suite
// against a freshly launched browser and reports the outcome.
func newRunCmd(cfg *config.Config) *cobra.Command {
	var junitPath, jsonPath string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the wallet scenario suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			runID := uuid.NewString()
			logger.Info("Run starting.", zap.String("run_id", runID))

			sess := session.New(*cfg, runID, logger)
			if err := sess.Start(ctx); err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}
			defer func() {
				// Teardown gets its own context so a canceled run still
				// terminates the browser.
				closeCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
				defer cancel()
				if err := sess.Close(closeCtx); err != nil {
					logger.Warn("Session teardown reported errors.", zap.Error(err))
				}
			}()

			recovery := harness.NewRecovery(sess.Driver, sess, logger)
			if cfg.Harness.ProbeTimeout > 0 {
				recovery.ProbeTimeout = cfg.Harness.ProbeTimeout
			}

			suite := &scenarios.Suite{
				D:                sess.Driver,
				Registry:         sess.Registry,
				Recovery:         recovery,
				Logger:           logger,
				ExtensionHomeURL: sess.ExtensionHomeURL(),
				DappURL:          sess.Dapp.URL(),
				Password:         cfg.Wallet.Password,
				Timeout:          cfg.Harness.DefaultTimeout,
			}

			state := &harness.State{DappURL: sess.Dapp.URL()}
			runner := harness.NewRunner(runID, sess.Collector, sess.Screenshot, logger)

			started := time.Now().UTC()
			results, runErr := runner.Run(ctx, state, suite.Groups())
			summary := &reporting.RunSummary{
				RunID:    runID,
				Browser:  cfg.Browser.Vendor,
				Started:  started,
				Finished: time.Now().UTC(),
				Passed:   runErr == nil,
				Results:  results,
			}

			if err := writeReport("junit", junitPath, summary); err != nil {
				logger.Error("Failed to write JUnit report.", zap.Error(err))
			}
			if err := writeReport("json", jsonPath, summary); err != nil {
				logger.Error("Failed to write JSON report.", zap.Error(err))
			}
			if cfg.Store.Enabled {
				if err := persistRun(ctx, cfg, summary, logger); err != nil {
					logger.Error("Failed to persist run results.", zap.Error(err))
				}
			}

			if runErr != nil {
				return fmt.Errorf("scenario run failed: %w", runErr)
			}
			logger.Info("Run passed.",
				zap.Int("steps", len(results)),
				zap.Duration("duration", summary.Duration()))
			return nil
		},
	}

	runCmd.Flags().StringVar(&junitPath, "junit", "", "write a JUnit XML report to this path")
	runCmd.Flags().StringVar(&jsonPath, "json-report", "", "write a JSON run summary to this path")
	return runCmd
}

func writeReport(format, path string, summary *reporting.RunSummary) error {
	if path == "" {
		return nil
	}
	r, err := reporting.New(format, path)
	if err != nil {
		return err
	}
	if err := r.Write(summary); err != nil {
		r.Close()
		return err
	}
	return r.Close()
}

// persistRun records the run in Postgres when the store is configured. Store
// trouble is logged, never turned into a run failure.
func persistRun(ctx context.Context, cfg *config.Config, summary *reporting.RunSummary, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.Store.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer pool.Close()

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		return err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := s.SaveRun(ctx, summary); err != nil {
		return err
	}
	if report, failed := failureReportFrom(summary); failed {
		return s.SaveFailureReport(ctx, report)
	}
	return nil
}

// failureReportFrom rebuilds the first-failure report from the run summary so
// the store row matches what the diagnostics collector wrote to disk.
func failureReportFrom(summary *reporting.RunSummary) (harness.FailureReport, bool) {
	for _, res := range summary.Results {
		if res.Status != harness.StatusFailed {
			continue
		}
		report := harness.FailureReport{
			RunID:         summary.RunID,
			Group:         res.Group,
			Step:          res.Step,
			ConsoleErrors: res.ConsoleErrors,
			CapturedAt:    summary.Finished,
		}
		if res.Err != nil {
			report.Failure = res.Err.Error()
		}
		return report, true
	}
	return harness.FailureReport{}, false
}
