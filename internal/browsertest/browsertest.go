// Package browsertest sets up real-browser fixtures for integration tests.
// Tests using it are skipped when no Chrome binary is available.
package browsertest

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formprobe/internal/basepage"
	"github.com/xkilldash9x/formprobe/internal/browser"
	"github.com/xkilldash9x/formprobe/internal/browser/session"
	"github.com/xkilldash9x/formprobe/internal/config"
	"github.com/xkilldash9x/formprobe/internal/testsite"
)

// ChromeEnv names a Chrome binary to use instead of searching PATH.
const ChromeEnv = "FORMPROBE_CHROME"

var chromeNames = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// ChromePath returns the browser binary tests should launch, or "" if none
// is installed.
func ChromePath() string {
	if p := os.Getenv(ChromeEnv); p != "" {
		return p
	}
	for _, name := range chromeNames {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// RequireChrome skips t in short mode or when no browser is installed.
func RequireChrome(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser integration test skipped in short mode")
	}
	p := ChromePath()
	if p == "" {
		t.Skipf("no Chrome binary found; set %s to run browser tests", ChromeEnv)
	}
	return p
}

// Fixture is a browser manager plus a local copy of the form.
type Fixture struct {
	Manager *browser.Manager
	Logger  *zap.Logger
	Config  *config.Config
	Site    *testsite.Server
	// Ctx bounds the whole fixture.
	Ctx context.Context
}

// Config returns defaults tuned for tests: headless, short waits.
func Config(execPath string) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.BrowserCfg.Headless = true
	cfg.BrowserCfg.ExecPath = execPath
	cfg.BrowserCfg.WindowWidth = 1280
	cfg.BrowserCfg.WindowHeight = 1024
	cfg.WaitCfg.DefaultTimeout = 5 * time.Second
	cfg.WaitCfg.PollInterval = 50 * time.Millisecond
	return cfg
}

// Setup starts the test site and a browser manager, both torn down with t.
func Setup(t *testing.T) *Fixture {
	t.Helper()
	execPath := RequireChrome(t)
	logger := zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
	cfg := Config(execPath)

	site, err := testsite.Start(logger)
	require.NoError(t, err)
	cfg.TargetCfg.FormURL = site.FormURL()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	mgr, err := browser.NewManager(ctx, cfg, logger)
	if err != nil {
		cancel()
		t.Fatalf("failed to create browser manager: %v", err)
	}

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			t.Logf("Error during browser manager shutdown: %v", err)
		}
		if err := site.Close(shutdownCtx); err != nil {
			t.Logf("Error stopping test site: %v", err)
		}
		cancel()
	})

	return &Fixture{Manager: mgr, Logger: logger, Config: cfg, Site: site, Ctx: ctx}
}

// NewSession opens a session closed with t.
func (f *Fixture) NewSession(t *testing.T) *session.Session {
	t.Helper()
	initCtx, cancel := context.WithTimeout(f.Ctx, 30*time.Second)
	defer cancel()

	s, err := f.Manager.NewSession(initCtx)
	require.NoError(t, err, "failed to start a browser session")

	t.Cleanup(func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := s.Close(closeCtx); err != nil {
			t.Logf("Error closing session %s: %v", s.ID(), err)
		}
	})
	return s
}

// Settings returns wait settings matching the fixture config.
func (f *Fixture) Settings() basepage.Settings {
	return basepage.SettingsFromConfig(f.Config.Wait())
}
