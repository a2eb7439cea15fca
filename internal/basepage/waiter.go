package basepage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formprobe/internal/reporting"
)

// Waiter polls a Driver until an element or dialog reaches the awaited
// state or the wait bound elapses.
type Waiter struct {
	driver   Driver
	sink     reporting.Sink
	logger   *zap.Logger
	settings Settings
}

// NewWaiter creates a Waiter. A nil sink discards diagnostics.
func NewWaiter(driver Driver, sink reporting.Sink, logger *zap.Logger, settings Settings) *Waiter {
	if sink == nil {
		sink = reporting.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}
	return &Waiter{
		driver:   driver,
		sink:     sink,
		logger:   logger.Named("waiter"),
		settings: settings,
	}
}

// Settings returns the bounds this waiter applies by default.
func (w *Waiter) Settings() Settings { return w.settings }

// errWindowClosed is the internal signal that a poll ran out of time.
type errWindowClosed struct{ last error }

func (e *errWindowClosed) Error() string { return "wait window elapsed" }

// poll evaluates check immediately, even for a zero timeout, and then on
// every tick until it reports true, the bound elapses (*errWindowClosed) or
// ctx ends (ctx.Err()). Errors from check count as "not yet" and the last
// one is remembered.
func (w *Waiter) poll(ctx context.Context, timeout time.Duration, check func(context.Context) (bool, error)) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(w.settings.PollInterval)
	defer ticker.Stop()

	var last error
	for first := true; ; first = false {
		checkCtx := waitCtx
		if first && timeout <= 0 {
			// A zero bound still gets one look.
			checkCtx = ctx
		}
		ok, err := check(checkCtx)
		if ok {
			return nil
		}
		if err != nil && checkCtx.Err() == nil {
			last = err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &errWindowClosed{last: last}
		case <-ticker.C:
		}
	}
}

func firstMatch(ctx context.Context, d Driver, loc Locator) (Element, error) {
	els, err := d.Query(ctx, loc)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

// WaitForPresence waits until at least one element matches loc and returns
// the first. On timeout it attaches a screenshot and returns a
// *LocatorTimeoutError.
func (w *Waiter) WaitForPresence(ctx context.Context, loc Locator, opts ...WaitOption) (Element, error) {
	return w.waitFor(ctx, loc, "present", w.settings.resolve(opts), func(ctx context.Context) (Element, error) {
		return firstMatch(ctx, w.driver, loc)
	})
}

// WaitForClickable waits until the first element matching loc is visible
// and enabled. Timeouts are handled as in WaitForPresence.
func (w *Waiter) WaitForClickable(ctx context.Context, loc Locator, opts ...WaitOption) (Element, error) {
	return w.waitFor(ctx, loc, "clickable", w.settings.resolve(opts), func(ctx context.Context) (Element, error) {
		el, err := firstMatch(ctx, w.driver, loc)
		if el == nil {
			return nil, err
		}
		ok, err := el.Clickable(ctx)
		if !ok {
			return nil, err
		}
		return el, nil
	})
}

func (w *Waiter) waitFor(ctx context.Context, loc Locator, condition string, p waitParams, find func(context.Context) (Element, error)) (Element, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	var found Element
	err := w.poll(ctx, p.timeout, func(ctx context.Context) (bool, error) {
		el, err := find(ctx)
		if el == nil {
			return false, err
		}
		found = el
		return true, nil
	})
	if err == nil {
		return found, nil
	}

	var closed *errWindowClosed
	if !errors.As(err, &closed) {
		return nil, fmt.Errorf("waiting for %s to be %s: %w", loc, condition, err)
	}

	timeoutErr := &LocatorTimeoutError{Locator: loc, Condition: condition, Timeout: p.timeout, Cause: closed.last}
	w.logger.Warn("Element wait timed out",
		zap.Stringer("locator", loc),
		zap.String("condition", condition),
		zap.Duration("timeout", p.timeout),
		zap.NamedError("last_error", closed.last))
	w.attachDiagnostic(ctx, "Element not found: "+loc.String())
	return nil, timeoutErr
}

// attachDiagnostic captures the page for a failed wait. When the browser
// cannot capture because a dialog is open, the dialog is recorded as text
// under the same label instead. Capture problems are logged and never
// replace the wait error.
func (w *Waiter) attachDiagnostic(ctx context.Context, label string) {
	shotCtx, cancel := context.WithTimeout(ctx, w.screenshotTimeout())
	defer cancel()
	err := AttachScreenshot(shotCtx, w.driver, w.sink, label)
	if err == nil {
		return
	}
	if dlg, open := w.driver.PendingDialog(); open {
		note := fmt.Sprintf("%s dialog open: %s", dlg.Type, dlg.Message)
		w.sink.Attach(label, reporting.KindText, []byte(note))
		w.logger.Warn("Screenshot blocked by an open dialog, recorded the dialog instead",
			zap.String("label", label), zap.String("dialog_type", dlg.Type), zap.Error(err))
		return
	}
	w.logger.Warn("Could not capture diagnostic screenshot", zap.String("label", label), zap.Error(err))
}

func (w *Waiter) screenshotTimeout() time.Duration {
	if w.settings.ScreenshotTimeout > 0 {
		return w.settings.ScreenshotTimeout
	}
	return DefaultScreenshotTimeout
}

// WaitForAlert waits for a JavaScript dialog. It reports false when none
// opens within the bound or ctx ends first; it never fails.
func (w *Waiter) WaitForAlert(ctx context.Context, opts ...WaitOption) (Dialog, bool) {
	p := w.settings.resolve(opts)
	var dlg Dialog
	err := w.poll(ctx, p.timeout, func(context.Context) (bool, error) {
		d, ok := w.driver.PendingDialog()
		if ok {
			dlg = d
		}
		return ok, nil
	})
	if err != nil {
		w.logger.Debug("No dialog appeared", zap.Duration("timeout", p.timeout), zap.Error(err))
		return Dialog{}, false
	}
	return dlg, true
}

// FindAll waits for at least one match and returns every match. It returns
// an empty slice when nothing appears within the bound, and never fails.
func (w *Waiter) FindAll(ctx context.Context, loc Locator, opts ...WaitOption) []Element {
	if err := loc.Validate(); err != nil {
		w.logger.Warn("Invalid locator", zap.Error(err))
		return []Element{}
	}

	p := w.settings.resolve(opts)
	var found []Element
	err := w.poll(ctx, p.timeout, func(ctx context.Context) (bool, error) {
		els, err := w.driver.Query(ctx, loc)
		if err != nil || len(els) == 0 {
			return false, err
		}
		found = els
		return true, nil
	})
	if err != nil {
		w.logger.Debug("No elements found", zap.Stringer("locator", loc), zap.Error(err))
		return []Element{}
	}
	return found
}

// AttachScreenshot captures the page and attaches it to sink under label.
func AttachScreenshot(ctx context.Context, d Driver, sink reporting.Sink, label string) error {
	png, err := d.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot %q: %w", label, err)
	}
	sink.Attach(label, reporting.KindPNG, png)
	return nil
}
