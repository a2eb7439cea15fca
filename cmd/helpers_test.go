// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formprobe/internal/basepage"
	"github.com/xkilldash9x/formprobe/internal/config"
	"github.com/xkilldash9x/formprobe/internal/formpage/formpagetest"
	"github.com/xkilldash9x/formprobe/internal/reporting"
	"github.com/xkilldash9x/formprobe/internal/store"
	"github.com/xkilldash9x/formprobe/internal/suite"
)

// fakeDrivers backs every session with an in-memory form.
type fakeDrivers struct {
	opts      formpagetest.Options
	createErr error

	mu        sync.Mutex
	created   int
	shutdowns int
	forms     []*formpagetest.Form
}

func (f *fakeDrivers) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (suite.DriverProvider, func(context.Context) error, error) {
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	f.mu.Lock()
	f.created++
	f.mu.Unlock()
	shutdown := func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.shutdowns++
		return nil
	}
	return f, shutdown, nil
}

func (f *fakeDrivers) WithDriver(ctx context.Context, fn func(context.Context, basepage.Driver) error) error {
	form := formpagetest.New(f.opts)
	f.mu.Lock()
	f.forms = append(f.forms, form)
	f.mu.Unlock()
	return fn(ctx, form)
}

// mockStore is a testify mock of runStore.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) SaveRun(ctx context.Context, summary reporting.RunSummary, cases []*reporting.CaseResult) error {
	return m.Called(ctx, summary, cases).Error(0)
}

func (m *mockStore) Recent(ctx context.Context, limit int) ([]store.RunRecord, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]store.RunRecord)
	return runs, args.Error(1)
}

func (m *mockStore) CasesByRunID(ctx context.Context, runID string) ([]store.CaseRecord, error) {
	args := m.Called(ctx, runID)
	cases, _ := args.Get(0).([]store.CaseRecord)
	return cases, args.Error(1)
}

// mockStoreProvider is a testify mock of storeProvider.
type mockStoreProvider struct {
	mock.Mock
}

func (m *mockStoreProvider) Create(ctx context.Context, cfg config.Interface) (runStore, func(), error) {
	args := m.Called(ctx, cfg)
	s, _ := args.Get(0).(runStore)
	cleanup, _ := args.Get(1).(func())
	return s, cleanup, args.Error(2)
}

// newTestConfig returns defaults tuned for in-memory forms: short waits and
// a throwaway report directory.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.LoggerCfg.Level = "error"
	cfg.TargetCfg.FormURL = "http://form.test/form-fields/"
	cfg.ReportCfg.Dir = t.TempDir()
	cfg.WaitCfg = config.WaitConfig{
		DefaultTimeout:    200 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		ScreenshotTimeout: time.Second,
	}
	return cfg
}

// createTempConfig writes content to a YAML file that lives for the test.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// fastConfigYAML mirrors newTestConfig for commands that load config from disk.
const fastConfigYAML = `
logger:
  level: error
wait:
  default_timeout: 200ms
  poll_interval: 5ms
  screenshot_timeout: 1s
`

// executeCommand runs a fresh root command with deps and returns its output.
func executeCommand(t *testing.T, deps dependencies, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(deps)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// findCommand returns the named subcommand of root.
func findCommand(t *testing.T, root *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}
