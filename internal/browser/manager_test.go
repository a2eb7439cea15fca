// internal/browser/manager_test.go
package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formprobe/internal/basepage"
	"github.com/xkilldash9x/formprobe/internal/browser"
	"github.com/xkilldash9x/formprobe/internal/browser/session"
	"github.com/xkilldash9x/formprobe/internal/browsertest"
	"github.com/xkilldash9x/formprobe/internal/config"
)

func TestNewManager_RequiresConfig(t *testing.T) {
	_, err := browser.NewManager(context.Background(), nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestManager_ShutdownWithoutSessions(t *testing.T) {
	mgr, err := browser.NewManager(context.Background(), config.NewDefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, mgr.Shutdown(context.Background()))
	require.NoError(t, mgr.Shutdown(context.Background()), "second shutdown is a no-op")

	_, err = mgr.NewSession(context.Background())
	assert.Error(t, err, "no sessions after shutdown")
}

func TestManager_WithSessionReleasesOnError(t *testing.T) {
	f := browsertest.Setup(t)
	boom := errors.New("scenario failed")

	var seen *session.Session
	err := f.Manager.WithSession(f.Ctx, func(ctx context.Context, s *session.Session) error {
		seen = s
		assert.Equal(t, 1, f.Manager.ActiveSessions())
		return boom
	})

	assert.ErrorIs(t, err, boom)
	require.NotNil(t, seen)
	assert.Equal(t, 0, f.Manager.ActiveSessions())
	assert.ErrorIs(t, seen.RunActions(context.Background()), session.ErrSessionClosed)
}

func TestManager_WithSessionReleasesOnPanic(t *testing.T) {
	f := browsertest.Setup(t)

	assert.Panics(t, func() {
		_ = f.Manager.WithSession(f.Ctx, func(context.Context, *session.Session) error {
			panic("boom")
		})
	})
	assert.Equal(t, 0, f.Manager.ActiveSessions())
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	f := browsertest.Setup(t)
	a := f.NewSession(t)
	b := f.NewSession(t)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, f.Manager.ActiveSessions())

	ctx, cancel := context.WithTimeout(f.Ctx, 20*time.Second)
	defer cancel()

	page := basepage.New(a, nil, f.Logger, f.Settings())
	page.Open(ctx, f.Site.FormURL()).Type(ctx, basepage.CSS("#name-input"), "only in a")
	require.NoError(t, page.Err())

	other := basepage.New(b, nil, f.Logger, f.Settings())
	other.Open(ctx, f.Site.FormURL())
	value, err := other.Find(ctx, basepage.CSS("#name-input"))
	require.NoError(t, err)
	got, err := value.Value(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSession_FormRoundTrip(t *testing.T) {
	f := browsertest.Setup(t)
	s := f.NewSession(t)

	ctx, cancel := context.WithTimeout(f.Ctx, 30*time.Second)
	defer cancel()

	page := basepage.New(s, nil, f.Logger, f.Settings())
	page.Open(ctx, f.Site.FormURL()).
		Type(ctx, basepage.CSS("#name-input"), "TestUser").
		Type(ctx, basepage.CSS("input[type='email']"), "testuser@example.com").
		Click(ctx, basepage.XPath("//input[@value='Milk' or @value='milk']")).
		SelectByValue(ctx, basepage.ID("automation"), "yes").
		CaptureScreenshot(ctx, "filled")
	require.NoError(t, page.Err())

	tools := page.FindAll(ctx, basepage.XPath("//*[contains(text(),'Automation tools')]//following::ul[1]//li"))
	assert.Len(t, tools, 5)

	el, err := page.Find(ctx, basepage.ID("automation"))
	require.NoError(t, err)
	v, err := el.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "yes", v)

	text, ok, err := page.Click(ctx, basepage.ID("submit-btn")).AcceptAlert(ctx)
	require.NoError(t, err)
	require.True(t, ok, "submit should raise an alert")
	assert.Equal(t, "Message received!", text)

	_, open := s.PendingDialog()
	assert.False(t, open)
	_, err = s.Screenshot(ctx)
	assert.NoError(t, err, "screenshots work again after the dialog is handled")
}

func TestSession_SelectMissingOption(t *testing.T) {
	f := browsertest.Setup(t)
	s := f.NewSession(t)

	ctx, cancel := context.WithTimeout(f.Ctx, 20*time.Second)
	defer cancel()

	page := basepage.New(s, nil, f.Logger, f.Settings())
	page.Open(ctx, f.Site.FormURL()).SelectByValue(ctx, basepage.ID("automation"), "maybe")
	assert.ErrorIs(t, page.Err(), basepage.ErrOptionNotFound)
}

func TestSession_ElementOperations(t *testing.T) {
	f := browsertest.Setup(t)
	s := f.NewSession(t)

	ctx, cancel := context.WithTimeout(f.Ctx, 30*time.Second)
	defer cancel()

	page := basepage.New(s, nil, f.Logger, f.Settings())
	require.NoError(t, page.Open(ctx, f.Site.FormURL()).Err())

	name, err := page.Find(ctx, basepage.CSS("#name-input"))
	require.NoError(t, err)
	clickable, err := name.Clickable(ctx)
	require.NoError(t, err)
	assert.True(t, clickable)
	require.NoError(t, name.SendKeys(ctx, "first"))
	require.NoError(t, name.Clear(ctx))
	require.NoError(t, name.SendKeys(ctx, "second"))
	v, err := name.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	label, err := page.TextOf(ctx, basepage.XPath("//*[contains(text(),'Automation tools')]"))
	require.NoError(t, err)
	assert.Contains(t, label, "Automation tools")

	t.Run("covered element needs the scripted click", func(t *testing.T) {
		require.NoError(t, s.RunActions(ctx, chromedp.Evaluate(`(() => {
			const cover = document.createElement('div');
			cover.style.cssText = 'position:fixed;inset:0;z-index:9999;background:transparent';
			document.body.appendChild(cover);
			return true;
		})()`, nil)))

		milk, err := page.Find(ctx, basepage.XPath("//input[@value='Milk']"))
		require.NoError(t, err)
		require.NoError(t, milk.ScrollIntoView(ctx))
		assert.ErrorIs(t, milk.Click(ctx), basepage.ErrClickIntercepted)

		strategy, err := page.ClickWithStrategy(ctx, basepage.XPath("//input[@value='Milk']"))
		require.NoError(t, err)
		assert.Equal(t, basepage.ClickScripted, strategy)

		var checked bool
		require.NoError(t, s.RunActions(ctx, chromedp.Evaluate(`document.querySelector("input[value='Milk']").checked`, &checked)))
		assert.True(t, checked)
	})
}
