package suite

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/formprobe/internal/basepage"
	"github.com/xkilldash9x/formprobe/internal/browser"
	"github.com/xkilldash9x/formprobe/internal/browser/session"
	"github.com/xkilldash9x/formprobe/internal/config"
	"github.com/xkilldash9x/formprobe/internal/formpage"
	"github.com/xkilldash9x/formprobe/internal/reporting"
)

// RunName is the suite name recorded in reports and history.
const RunName = "form-fields"

// DriverProvider hands a fresh page driver to fn and releases it when fn
// returns, on every path.
type DriverProvider interface {
	WithDriver(ctx context.Context, fn func(context.Context, basepage.Driver) error) error
}

type managerProvider struct{ m *browser.Manager }

// FromManager runs each scenario in its own browser session.
func FromManager(m *browser.Manager) DriverProvider { return managerProvider{m: m} }

func (p managerProvider) WithDriver(ctx context.Context, fn func(context.Context, basepage.Driver) error) error {
	return p.m.WithSession(ctx, func(ctx context.Context, s *session.Session) error {
		return fn(ctx, s)
	})
}

// Options configures a Runner.
type Options struct {
	// RunID is generated when empty.
	RunID           string
	FormURL         string
	ExpectedAlert   string
	Concurrency     int
	ScenarioTimeout time.Duration
	Wait            basepage.Settings
}

// OptionsFromConfig maps application config onto runner options.
func OptionsFromConfig(cfg config.Interface) Options {
	return Options{
		FormURL:         cfg.Target().FormURL,
		ExpectedAlert:   cfg.Target().ExpectedAlert,
		Concurrency:     cfg.Suite().Concurrency,
		ScenarioTimeout: cfg.Suite().ScenarioTimeout,
		Wait:            basepage.SettingsFromConfig(cfg.Wait()),
	}
}

// Result is the outcome of one run. Cases follow scenario order.
type Result struct {
	RunID   string
	Start   time.Time
	Stop    time.Time
	Cases   []*reporting.CaseResult
	Summary reporting.RunSummary
}

// Failed reports whether any case did not pass.
func (r *Result) Failed() bool { return r.Summary.Failed > 0 }

// Runner executes scenarios with bounded parallelism. A failing scenario
// never stops the others.
type Runner struct {
	provider DriverProvider
	reporter reporting.Reporter
	logger   *zap.Logger
	opts     Options
}

// NewRunner creates a Runner. reporter may be nil.
func NewRunner(provider DriverProvider, reporter reporting.Reporter, logger *zap.Logger, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ExpectedAlert == "" {
		opts.ExpectedAlert = "Message received!"
	}
	if opts.Wait.Timeout <= 0 {
		opts.Wait = basepage.DefaultSettings()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	return &Runner{
		provider: provider,
		reporter: reporter,
		logger:   logger.Named("suite"),
		opts:     opts,
	}
}

// Run executes scenarios and returns their results. The error covers
// report writing only; scenario failures are in the result.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*Result, error) {
	res := &Result{
		RunID: r.opts.RunID,
		Start: time.Now(),
		Cases: make([]*reporting.CaseResult, len(scenarios)),
	}
	r.logger.Info("Starting suite run.",
		zap.String("run_id", res.RunID),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("concurrency", r.opts.Concurrency))

	var (
		g        errgroup.Group
		mu       sync.Mutex
		writeErr error
	)
	g.SetLimit(r.opts.Concurrency)

	for i, sc := range scenarios {
		g.Go(func() error {
			cr := r.runOne(ctx, sc)
			res.Cases[i] = cr
			if r.reporter != nil {
				if err := r.reporter.Write(cr); err != nil {
					mu.Lock()
					writeErr = errors.Join(writeErr, fmt.Errorf("report %s: %w", sc.ID, err))
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Stop = time.Now()
	res.Summary = reporting.Summarize(res.RunID, RunName, res.Start, res.Stop, res.Cases)
	r.logger.Info("Suite run finished.",
		zap.String("run_id", res.RunID),
		zap.Int("passed", res.Summary.Passed),
		zap.Int("failed", res.Summary.Failed),
		zap.Duration("duration", res.Stop.Sub(res.Start)))
	return res, writeErr
}

func (r *Runner) runOne(ctx context.Context, sc Scenario) *reporting.CaseResult {
	logger := r.logger.With(zap.String("scenario", sc.ID))
	rec := reporting.NewRecorder(sc.Title, sc.Description, sc.Labels)

	if err := ctx.Err(); err != nil {
		logger.Warn("Scenario skipped, run cancelled.", zap.Error(err))
		return rec.Skip("run cancelled before the scenario started")
	}

	if r.opts.ScenarioTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.ScenarioTimeout)
		defer cancel()
	}

	logger.Info("Scenario started.")
	err := r.provider.WithDriver(ctx, func(ctx context.Context, d basepage.Driver) error {
		page := basepage.New(d, rec, logger, r.opts.Wait)
		runErr := r.invoke(ctx, sc, formpage.New(page, r.opts.FormURL))

		label := "Success Screenshot"
		if runErr != nil {
			label = "Failure Screenshot"
		}
		r.finalScreenshot(ctx, d, rec, label, logger)
		return runErr
	})

	cr := rec.Finish(err)
	if err != nil {
		logger.Warn("Scenario failed.", zap.Error(err), zap.Duration("duration", cr.Duration()))
	} else {
		logger.Info("Scenario passed.", zap.Duration("duration", cr.Duration()))
	}
	return cr
}

// invoke runs the scenario body and turns a panic into a failure.
func (r *Runner) invoke(ctx context.Context, sc Scenario, f *formpage.FormPage) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Scenario panicked",
				zap.String("scenario", sc.ID),
				zap.Any("panicValue", p),
				zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("scenario %s panicked: %v", sc.ID, p)
		}
	}()
	return sc.Run(ctx, f, r.opts.ExpectedAlert)
}

// finalScreenshot captures the end state even when ctx has expired. A
// leftover dialog is dismissed first since it blocks capture.
func (r *Runner) finalScreenshot(ctx context.Context, d basepage.Driver, sink reporting.Sink, label string, logger *zap.Logger) {
	timeout := r.opts.Wait.ScreenshotTimeout
	if timeout <= 0 {
		timeout = basepage.DefaultScreenshotTimeout
	}
	shotCtx, cancel := context.WithTimeout(session.Detach(ctx), timeout)
	defer cancel()

	if dlg, open := d.PendingDialog(); open {
		logger.Debug("Dismissing leftover dialog before screenshot", zap.String("message", dlg.Message))
		if err := d.HandleDialog(shotCtx, false); err != nil {
			logger.Warn("Could not dismiss dialog", zap.Error(err))
		}
	}
	if err := basepage.AttachScreenshot(shotCtx, d, sink, label); err != nil {
		logger.Warn("Could not capture final screenshot", zap.String("label", label), zap.Error(err))
	}
}
