// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formprobe/internal/basepage"
	"github.com/xkilldash9x/formprobe/internal/browser/stealth"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrDialogOpen is returned by operations the browser cannot serve
	// while a JavaScript dialog blocks the page.
	ErrDialogOpen = errors.New("a javascript dialog is open")
	// ErrNoDialog is returned by HandleDialog when nothing is open.
	ErrNoDialog = errors.New("no javascript dialog is open")
	// ErrSessionClosed is returned once Close has run.
	ErrSessionClosed = errors.New("session is closed")
)

// Options tunes a Session.
type Options struct {
	Stealth bool
	Persona stealth.Persona
	// CloseTimeout bounds the graceful browser shutdown in Close.
	CloseTimeout time.Duration
}

// Session is one browser with one page, driven over CDP. It implements
// basepage.Driver. A Session is used by one test at a time.
type Session struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	opts    Options
	onClose func()

	mu       sync.Mutex
	isClosed bool

	dlgMu    sync.Mutex
	dialog   *basepage.Dialog
	dialogCh chan struct{} // closed when a dialog opens
}

var _ basepage.Driver = (*Session)(nil)

// New wraps a chromedp context. ctx must come from chromedp.NewContext and
// cancel must release it; onClose runs once after Close.
func New(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger, opts Options, onClose func()) *Session {
	id := uuid.New().String()
	return &Session{
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(zap.String("session_id", id)),
		opts:     opts,
		onClose:  onClose,
		dialogCh: make(chan struct{}),
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// GetContext returns the chromedp context backing the session.
func (s *Session) GetContext() context.Context { return s.ctx }

// Initialize launches the browser and prepares the page. ctx bounds the
// launch only; the browser itself lives until Close.
func (s *Session) Initialize(ctx context.Context) error {
	chromedp.ListenTarget(s.ctx, s.handleEvent)

	var tasks chromedp.Tasks
	if s.opts.Stealth {
		tasks = append(tasks, stealth.Apply(s.opts.Persona, s.logger)...)
	}

	// The first Run allocates the browser and ties it to s.ctx, so it must
	// not run on a shorter-lived context.
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(s.ctx, tasks...) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to start browser session: %w", err)
		}
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("browser launch aborted: %w", ctx.Err())
	}

	s.logger.Debug("Browser session initialized.")
	return nil
}

func (s *Session) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventJavascriptDialogOpening:
		s.logger.Debug("JavaScript dialog opened", zap.String("type", string(e.Type)), zap.String("message", e.Message))
		s.dlgMu.Lock()
		if s.dialog == nil {
			s.dialog = &basepage.Dialog{Type: string(e.Type), Message: e.Message}
			close(s.dialogCh)
		}
		s.dlgMu.Unlock()
	case *page.EventJavascriptDialogClosed:
		s.clearDialog()
	}
}

func (s *Session) clearDialog() {
	s.dlgMu.Lock()
	defer s.dlgMu.Unlock()
	if s.dialog != nil {
		s.dialog = nil
		s.dialogCh = make(chan struct{})
	}
}

// RunActions executes chromedp actions bounded by both the session lifetime
// and ctx.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed() {
		return ErrSessionClosed
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// runInteractive runs actions that may open a dialog. A dialog blocks the
// page until it is handled, so the call returns as soon as one opens and
// the action finishes in the background once the dialog is answered.
func (s *Session) runInteractive(ctx context.Context, actions ...chromedp.Action) error {
	s.dlgMu.Lock()
	opened := s.dialogCh
	pending := s.dialog != nil
	s.dlgMu.Unlock()
	if pending {
		return ErrDialogOpen
	}

	if s.closed() {
		return ErrSessionClosed
	}
	// The background remainder must survive the caller's deadline.
	runCtx := Detach(ctx)
	done := make(chan error, 1)
	go func() {
		err := s.RunActions(runCtx, actions...)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("Interactive action finished with error", zap.Error(err))
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-opened:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate starts loading url and returns without waiting for load events.
func (s *Session) Navigate(ctx context.Context, url string) error {
	target, err := json.Marshal(url)
	if err != nil {
		return fmt.Errorf("encode url: %w", err)
	}
	var started bool
	expr := fmt.Sprintf("(window.location.assign(%s), true)", target)
	if err := s.RunActions(ctx, chromedp.Evaluate(expr, &started)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	s.logger.Debug("Navigation started", zap.String("url", url))
	return nil
}

// Query resolves loc against the current document without waiting.
func (s *Session) Query(ctx context.Context, loc basepage.Locator) ([]basepage.Element, error) {
	sel, opts, err := queryFor(loc)
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	if err := s.RunActions(ctx, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}
	els := make([]basepage.Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &element{s: s, node: n})
	}
	return els, nil
}

func queryFor(loc basepage.Locator) (string, []chromedp.QueryOption, error) {
	if err := loc.Validate(); err != nil {
		return "", nil, err
	}
	opts := []chromedp.QueryOption{chromedp.AtLeast(0)}
	switch loc.Strategy {
	case basepage.StrategyXPath:
		opts = append(opts, chromedp.BySearch)
	case basepage.StrategyID:
		opts = append(opts, chromedp.ByID)
	default:
		opts = append(opts, chromedp.ByQueryAll)
	}
	return loc.Selector, opts, nil
}

// Screenshot captures the viewport as PNG. It fails while a dialog is open.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if _, open := s.PendingDialog(); open {
		return nil, ErrDialogOpen
	}
	var buf []byte
	if err := s.RunActions(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// PendingDialog reports the dialog currently open on the page.
func (s *Session) PendingDialog() (basepage.Dialog, bool) {
	s.dlgMu.Lock()
	defer s.dlgMu.Unlock()
	if s.dialog == nil {
		return basepage.Dialog{}, false
	}
	return *s.dialog, true
}

// HandleDialog accepts or dismisses the open dialog.
func (s *Session) HandleDialog(ctx context.Context, accept bool) error {
	if _, open := s.PendingDialog(); !open {
		return ErrNoDialog
	}
	if err := s.RunActions(ctx, page.HandleJavaScriptDialog(accept)); err != nil {
		return fmt.Errorf("handle dialog: %w", err)
	}
	// The closed event follows asynchronously; clear now so the next wait
	// does not see a stale dialog.
	s.clearDialog()
	return nil
}

func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isClosed
}

// Close shuts the browser down and releases the session. It is safe to call
// more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	timeout := s.opts.CloseTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	closeCtx, cancel := context.WithTimeout(Detach(ctx), timeout)
	defer cancel()

	// chromedp.Cancel waits for the browser to exit.
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.ctx) }()

	var err error
	select {
	case err = <-done:
	case <-closeCtx.Done():
		err = fmt.Errorf("browser did not exit within %s", timeout)
	}
	s.cancel()
	// A context that never allocated a browser has nothing to shut down.
	if errors.Is(err, context.Canceled) || errors.Is(err, chromedp.ErrInvalidContext) {
		err = nil
	}

	if s.onClose != nil {
		s.onClose()
	}
	return err
}
