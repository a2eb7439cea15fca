package basepage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formprobe/internal/reporting"
)

// BasePage wraps a Driver with waits, report steps and a fluent API.
//
// Mutating operations return the page so calls chain. The first failure is
// kept and every later operation in the chain is skipped; Err returns it.
// Every element operation resolves its locator afresh through the Waiter.
type BasePage struct {
	driver Driver
	waiter *Waiter
	sink   reporting.Sink
	logger *zap.Logger

	err error
}

// New creates a page bound to one session.
func New(driver Driver, sink reporting.Sink, logger *zap.Logger, settings Settings) *BasePage {
	if sink == nil {
		sink = reporting.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BasePage{
		driver: driver,
		waiter: NewWaiter(driver, sink, logger, settings),
		sink:   sink,
		logger: logger.Named("page"),
	}
}

func (p *BasePage) Driver() Driver       { return p.driver }
func (p *BasePage) Waiter() *Waiter      { return p.waiter }
func (p *BasePage) Sink() reporting.Sink { return p.sink }
func (p *BasePage) Logger() *zap.Logger  { return p.logger }

// Err returns the first error recorded by the chain.
func (p *BasePage) Err() error { return p.err }

// Fail records err unless an earlier error is already held.
func (p *BasePage) Fail(err error) *BasePage {
	if p.err == nil && err != nil {
		p.err = err
	}
	return p
}

// ResetErr clears the held error so a new chain can start.
func (p *BasePage) ResetErr() { p.err = nil }

// Step runs fn inside a report step unless the chain has already failed.
func (p *BasePage) Step(title string, fn func() error) *BasePage {
	if p.err != nil {
		return p
	}
	st := p.sink.StartStep(title)
	err := fn()
	st.End(err)
	return p.Fail(err)
}

// Open starts navigation to url. It does not wait for the page to load;
// element waits cover readiness.
func (p *BasePage) Open(ctx context.Context, url string) *BasePage {
	return p.Step("Open "+url, func() error {
		p.logger.Debug("Navigating", zap.String("url", url))
		if err := p.driver.Navigate(ctx, url); err != nil {
			return fmt.Errorf("navigate to %s: %w", url, err)
		}
		return nil
	})
}

// Find waits for loc to be present and returns the first match.
func (p *BasePage) Find(ctx context.Context, loc Locator, opts ...WaitOption) (Element, error) {
	return p.waiter.WaitForPresence(ctx, loc, opts...)
}

// FindAll returns every match for loc, or an empty slice on timeout.
func (p *BasePage) FindAll(ctx context.Context, loc Locator, opts ...WaitOption) []Element {
	return p.waiter.FindAll(ctx, loc, opts...)
}

// TextOf waits for loc and returns its rendered text.
func (p *BasePage) TextOf(ctx context.Context, loc Locator, opts ...WaitOption) (string, error) {
	el, err := p.waiter.WaitForPresence(ctx, loc, opts...)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// Click waits for loc to be clickable, scrolls it to the viewport center and
// clicks natively. If that fails, one scripted click on the same handle
// follows. There is no further fallback.
func (p *BasePage) Click(ctx context.Context, loc Locator, opts ...WaitOption) *BasePage {
	return p.Step("Click "+loc.String(), func() error {
		_, err := p.ClickWithStrategy(ctx, loc, opts...)
		return err
	})
}

// ClickWithStrategy performs a click like Click, outside the fluent chain,
// and reports which tier completed it.
func (p *BasePage) ClickWithStrategy(ctx context.Context, loc Locator, opts ...WaitOption) (ClickStrategy, error) {
	p.logger.Debug("Attempting to click element", zap.Stringer("locator", loc))
	el, err := p.waiter.WaitForClickable(ctx, loc, opts...)
	if err != nil {
		return ClickNative, err
	}

	nativeErr := nativeClick(ctx, el)
	if nativeErr == nil {
		return ClickNative, nil
	}
	if ctx.Err() != nil {
		return ClickNative, fmt.Errorf("click %s: %w", loc, ctx.Err())
	}

	p.logger.Warn("Native click failed, falling back to scripted click",
		zap.Stringer("locator", loc), zap.Error(nativeErr))
	if err := el.ScriptClick(ctx); err != nil {
		return ClickScripted, &ClickError{Locator: loc, Native: nativeErr, Scripted: err}
	}
	return ClickScripted, nil
}

func nativeClick(ctx context.Context, el Element) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("scroll into view: %w", err)
	}
	return el.Click(ctx)
}

// Type waits for loc, clears it and enters text verbatim.
func (p *BasePage) Type(ctx context.Context, loc Locator, text string, opts ...WaitOption) *BasePage {
	return p.Step("Type into "+loc.String(), func() error {
		el, err := p.waiter.WaitForPresence(ctx, loc, opts...)
		if err != nil {
			return err
		}
		if err := el.Clear(ctx); err != nil {
			return fmt.Errorf("clear %s: %w", loc, err)
		}
		if err := el.SendKeys(ctx, text); err != nil {
			return fmt.Errorf("type into %s: %w", loc, err)
		}
		return nil
	})
}

// SelectOption picks the option of the <select> at loc whose value or
// visible text (per by) equals value.
func (p *BasePage) SelectOption(ctx context.Context, loc Locator, by SelectBy, value string, opts ...WaitOption) *BasePage {
	return p.Step(fmt.Sprintf("Select %s %q in %s", by, value, loc), func() error {
		el, err := p.waiter.WaitForPresence(ctx, loc, opts...)
		if err != nil {
			return err
		}
		ok, err := el.SelectOption(ctx, by, value)
		if err != nil {
			return fmt.Errorf("select in %s: %w", loc, err)
		}
		if !ok {
			return &OptionNotFoundError{Locator: loc, By: by, Value: value}
		}
		return nil
	})
}

func (p *BasePage) SelectByValue(ctx context.Context, loc Locator, value string, opts ...WaitOption) *BasePage {
	return p.SelectOption(ctx, loc, ByValue, value, opts...)
}

func (p *BasePage) SelectByVisibleText(ctx context.Context, loc Locator, text string, opts ...WaitOption) *BasePage {
	return p.SelectOption(ctx, loc, ByVisibleText, text, opts...)
}

// AcceptAlert waits for a dialog, accepts it and returns its text. The
// boolean is false when no dialog appeared; that is not an error.
func (p *BasePage) AcceptAlert(ctx context.Context, opts ...WaitOption) (string, bool, error) {
	if p.err != nil {
		return "", false, p.err
	}

	var (
		text  string
		found bool
	)
	p.Step("Accept alert", func() error {
		dlg, ok := p.waiter.WaitForAlert(ctx, opts...)
		if !ok {
			return ctx.Err()
		}
		if err := p.driver.HandleDialog(ctx, true); err != nil {
			return fmt.Errorf("accept %s dialog: %w", dlg.Type, err)
		}
		text, found = dlg.Message, true
		p.logger.Debug("Accepted dialog", zap.String("type", dlg.Type), zap.String("message", dlg.Message))
		return nil
	})
	if p.err != nil {
		return "", false, p.err
	}
	return text, found, nil
}

// CaptureScreenshot attaches a PNG of the page to the report under label.
func (p *BasePage) CaptureScreenshot(ctx context.Context, label string) *BasePage {
	return p.Step("Screenshot: "+label, func() error {
		return AttachScreenshot(ctx, p.driver, p.sink, label)
	})
}

// AttachText adds a plain text note to the report.
func (p *BasePage) AttachText(name, text string) {
	p.sink.Attach(name, reporting.KindText, []byte(text))
}
