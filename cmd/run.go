// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formprobe/internal/browser"
	"github.com/xkilldash9x/formprobe/internal/config"
	"github.com/xkilldash9x/formprobe/internal/observability"
	"github.com/xkilldash9x/formprobe/internal/reporting"
	"github.com/xkilldash9x/formprobe/internal/suite"
	"github.com/xkilldash9x/formprobe/internal/testsite"
)

// ErrScenariosFailed is returned when the run completed but at least one
// scenario did not pass.
var ErrScenariosFailed = errors.New("scenarios failed")

const cleanupTimeout = 15 * time.Second

// driverFactory starts whatever backs scenario sessions and returns a
// shutdown hook for it.
type driverFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (suite.DriverProvider, func(context.Context) error, error)
}

type chromeDriverFactory struct{}

func (chromeDriverFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (suite.DriverProvider, func(context.Context) error, error) {
	m, err := browser.NewManager(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start browser manager: %w", err)
	}
	return suite.FromManager(m), m.Shutdown, nil
}

// runOptions are the flag values of the run command.
type runOptions struct {
	target      string
	local       bool
	scenarios   []string
	reportDir   string
	format      string
	concurrency int
	headed      bool
}

func newRunCmd(drivers driverFactory, stores storeProvider) *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the form scenarios and write a report",
		Long: `Runs the registered form scenarios, each in its own browser session, and
writes a JSON or JUnit report with step timings and screenshots. The command
exits non-zero when any scenario fails.`,
		Example: `  formprobe run --local
  formprobe run --target https://practice-automation.com/form-fields/ --format junit
  formprobe run --scenario successful_submission --headed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if err := applyRunFlagOverrides(cmd, cfg, opts); err != nil {
				return err
			}
			_, err = runSuite(cmd.Context(), observability.GetLogger(), cfg, opts.local, drivers, stores, cmd.OutOrStdout())
			return err
		},
	}

	bindRunFlags(runCmd.Flags(), &opts)
	runCmd.MarkFlagsMutuallyExclusive("target", "local")

	return runCmd
}

func bindRunFlags(fs *pflag.FlagSet, opts *runOptions) {
	fs.StringVarP(&opts.target, "target", "t", "", "URL of the form page (overrides target.form_url)")
	fs.BoolVar(&opts.local, "local", false, "Serve the bundled copy of the form on a loopback port and test that")
	fs.StringSliceVarP(&opts.scenarios, "scenario", "s", nil, fmt.Sprintf("Scenario IDs to run (default all: %v)", suite.IDs()))
	fs.StringVarP(&opts.reportDir, "report-dir", "o", "", "Directory for the report and attachments")
	fs.StringVarP(&opts.format, "format", "f", "", "Report format: json or junit")
	fs.IntVarP(&opts.concurrency, "concurrency", "j", 0, "Maximum scenarios running at once")
	fs.BoolVar(&opts.headed, "headed", false, "Show the browser window")
}

// applyRunFlagOverrides copies explicitly set flags onto cfg.
func applyRunFlagOverrides(cmd *cobra.Command, cfg config.Interface, opts runOptions) error {
	flags := cmd.Flags()
	if flags.Changed("target") {
		if opts.target == "" {
			return fmt.Errorf("--target must not be empty")
		}
		cfg.SetTargetFormURL(opts.target)
	}
	if flags.Changed("scenario") {
		cfg.SetSuiteScenarios(opts.scenarios)
	}
	if flags.Changed("report-dir") {
		cfg.SetReportDir(opts.reportDir)
	}
	if flags.Changed("format") {
		cfg.SetReportFormat(opts.format)
	}
	if flags.Changed("concurrency") {
		if opts.concurrency <= 0 {
			return fmt.Errorf("--concurrency must be positive, got %d", opts.concurrency)
		}
		cfg.SetSuiteConcurrency(opts.concurrency)
	}
	if flags.Changed("headed") {
		cfg.SetBrowserHeadless(!opts.headed)
	}
	return nil
}

// runSuite executes the selected scenarios and writes every output the
// config asks for. A completed run with failures returns ErrScenariosFailed.
func runSuite(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	local bool,
	drivers driverFactory,
	stores storeProvider,
	out io.Writer,
) (*suite.Result, error) {
	scenarios, err := suite.Select(cfg.Suite().Scenarios)
	if err != nil {
		return nil, err
	}

	if local {
		site, err := testsite.Start(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start local form site: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
			defer cancel()
			if err := site.Close(closeCtx); err != nil {
				logger.Warn("Failed to stop local form site.", zap.Error(err))
			}
		}()
		cfg.SetTargetFormURL(site.FormURL())
	}

	runID := uuid.New().String()
	reporter, err := reporting.New(cfg.Report().Format, cfg.Report().Dir, reporting.Options{RunID: runID, Name: suite.RunName})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reporter: %w", err)
	}

	provider, shutdown, err := drivers.Create(ctx, cfg, logger)
	if err != nil {
		_ = reporter.Close()
		return nil, err
	}
	defer func() {
		if shutdown == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("Session backend did not shut down cleanly.", zap.Error(err))
		}
	}()

	runOpts := suite.OptionsFromConfig(cfg)
	runOpts.RunID = runID
	logger.Info("Running form scenarios.",
		zap.String("target", runOpts.FormURL),
		zap.Strings("scenarios", scenarioIDs(scenarios)))

	res, writeErr := suite.NewRunner(provider, reporter, logger, runOpts).Run(ctx, scenarios)
	if err := reporter.Close(); err != nil {
		writeErr = errors.Join(writeErr, fmt.Errorf("failed to finalize report: %w", err))
	}

	if cfg.Database().URL != "" {
		if err := saveRun(context.WithoutCancel(ctx), cfg, stores, res); err != nil {
			writeErr = errors.Join(writeErr, err)
		}
	}

	if err := printSummary(out, res, cfg.Report().Dir); err != nil {
		writeErr = errors.Join(writeErr, err)
	}

	if writeErr != nil {
		return res, writeErr
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if res.Failed() {
		return res, fmt.Errorf("%w: %d of %d", ErrScenariosFailed, res.Summary.Failed, res.Summary.Total)
	}
	return res, nil
}

func saveRun(ctx context.Context, cfg config.Interface, stores storeProvider, res *suite.Result) error {
	s, cleanup, err := stores.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	return s.SaveRun(ctx, res.Summary, res.Cases)
}

func scenarioIDs(scenarios []suite.Scenario) []string {
	ids := make([]string, len(scenarios))
	for i, s := range scenarios {
		ids[i] = s.ID
	}
	return ids
}

func printSummary(out io.Writer, res *suite.Result, reportDir string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range res.Cases {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Status, c.Duration().Round(time.Millisecond), c.Name)
		if c.Failure != "" {
			fmt.Fprintf(w, "\t\t%s\n", c.Failure)
		}
	}
	fmt.Fprintf(w, "\nRun %s: %d passed, %d failed, %d skipped in %s\n",
		res.RunID, res.Summary.Passed, res.Summary.Failed, res.Summary.Skipped,
		res.Stop.Sub(res.Start).Round(time.Millisecond))
	fmt.Fprintf(w, "Report written to %s\n", reportDir)
	return w.Flush()
}
