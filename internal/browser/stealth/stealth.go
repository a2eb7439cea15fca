package stealth

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

//go:embed evasions.js
var evasionsScript string

// Persona defines the browser characteristics to emulate. Zero fields are
// left at the browser's own values.
type Persona struct {
	UserAgent string
	Languages []string
	Timezone  string
	Locale    string
}

// DefaultPersona keeps the real user agent and only pins language settings.
var DefaultPersona = Persona{
	Languages: []string{"en-US", "en"},
	Locale:    "en-US",
}

// AutomationFlags are command-line switches that remove Chrome's automation
// markers: the "controlled by automated software" infobar and the
// AutomationControlled blink feature. A false value drops a default switch.
func AutomationFlags() map[string]interface{} {
	return map[string]interface{}{
		"enable-automation":      false,
		"disable-blink-features": "AutomationControlled",
	}
}

// Script returns the init script installed on every new document.
func Script(p Persona) string {
	var b strings.Builder
	if len(p.Languages) > 0 {
		langs, _ := json.Marshal(p.Languages)
		fmt.Fprintf(&b, "window.__formprobeLanguages = %s;\n", langs)
	}
	b.WriteString(evasionsScript)
	return b.String()
}

// Apply constructs the CDP actions that make the automated browser look
// like a user-operated one. Run it before the first navigation.
func Apply(p Persona, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.Strings("languages", p.Languages),
	)

	script := Script(p)
	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
	}

	if p.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(p.UserAgent))
	}
	if p.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(p.Timezone))
	}
	if p.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(p.Locale))
	}
	if header := acceptLanguage(p.Languages); header != "" {
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": header}))
	}
	return tasks
}

// acceptLanguage renders languages with descending q-values.
func acceptLanguage(langs []string) string {
	parts := make([]string, 0, len(langs))
	for i, l := range langs {
		if i == 0 {
			parts = append(parts, l)
			continue
		}
		q := 1.0 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", l, q))
	}
	return strings.Join(parts, ",")
}
