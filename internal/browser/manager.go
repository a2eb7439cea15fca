// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/formprobe/internal/browser/session"
	"github.com/xkilldash9x/formprobe/internal/browser/stealth"
	"github.com/xkilldash9x/formprobe/internal/config"
	"github.com/xkilldash9x/formprobe/internal/observability"
)

const defaultLaunchTimeout = 30 * time.Second

// Manager owns the exec allocator and hands out one fresh browser per
// session. Every session it creates is tracked until closed.
type Manager struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	cfg         config.BrowserConfig
	logger      *zap.Logger

	sessions map[string]*session.Session
	mu       sync.RWMutex
	wg       sync.WaitGroup // tracks sessions not yet closed

	shutdownOnce sync.Once
}

// NewManager creates a browser manager. No browser is started until the
// first session is requested.
func NewManager(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("browser manager requires a configuration")
	}
	bcfg := cfg.Browser()
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(bcfg)...)

	m := &Manager{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		cfg:         bcfg,
		logger:      logger.Named("browser_manager"),
		sessions:    make(map[string]*session.Session),
	}
	m.logger.Info("Browser manager created.",
		zap.Bool("headless", bcfg.Headless),
		zap.Bool("stealth", bcfg.Stealth))
	return m, nil
}

// NewSession launches a browser and returns a ready session. The caller
// must Close it. ctx bounds startup only.
func (m *Manager) NewSession(ctx context.Context) (*session.Session, error) {
	if err := m.allocCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser manager is shut down: %w", err)
	}

	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(observability.Printf(m.logger, zapcore.DebugLevel)),
		chromedp.WithErrorf(observability.Printf(m.logger, zapcore.WarnLevel)),
	}
	if m.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(observability.Printf(m.logger, zapcore.DebugLevel)))
	}
	browserCtx, browserCancel := chromedp.NewContext(m.allocCtx, ctxOpts...)

	opts := session.Options{
		Stealth:      m.cfg.Stealth,
		Persona:      stealth.DefaultPersona,
		CloseTimeout: m.cfg.CloseTimeout,
	}

	m.wg.Add(1)
	var s *session.Session
	s = session.New(browserCtx, browserCancel, m.logger, opts, func() {
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", s.ID()))
	})

	launchTimeout := m.cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = defaultLaunchTimeout
	}
	launchCtx, cancel := context.WithTimeout(ctx, launchTimeout)
	defer cancel()

	if err := s.Initialize(launchCtx); err != nil {
		// ctx may be what failed, so cleanup runs detached from it.
		if cerr := s.Close(session.Detach(ctx)); cerr != nil {
			m.logger.Debug("Cleanup after failed launch reported an error.", zap.Error(cerr))
		}
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_id", s.ID()))
	return s, nil
}

// WithSession runs fn with a fresh session and always releases it, whether
// fn returns an error, panics, or ctx is cancelled.
func (m *Manager) WithSession(ctx context.Context, fn func(context.Context, *session.Session) error) error {
	s, err := m.NewSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(session.Detach(ctx)); cerr != nil {
			m.logger.Warn("Error closing session.", zap.String("session_id", s.ID()), zap.Error(cerr))
		}
	}()
	return fn(ctx, s)
}

// ActiveSessions reports how many sessions are open.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every open session and releases the allocator. Calls
// after the first are no-ops.
func (m *Manager) Shutdown(ctx context.Context) error {
	var shutdownErr error
	m.shutdownOnce.Do(func() {
		m.logger.Info("Shutting down browser manager.")

		m.mu.RLock()
		toClose := make([]*session.Session, 0, len(m.sessions))
		for _, s := range m.sessions {
			toClose = append(toClose, s)
		}
		m.mu.RUnlock()

		for _, s := range toClose {
			go func(s *session.Session) {
				if err := s.Close(ctx); err != nil {
					m.logger.Warn("Error during session close in shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
				}
			}(s)
		}

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.logger.Info("All sessions closed gracefully.")
		case <-ctx.Done():
			m.logger.Warn("Timeout waiting for sessions to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
			shutdownErr = fmt.Errorf("sessions still open at shutdown: %w", ctx.Err())
		}

		// Cancelling the allocator kills any browser still running.
		m.allocCancel()
		m.logger.Info("Browser manager shutdown complete.")
	})
	return shutdownErr
}
