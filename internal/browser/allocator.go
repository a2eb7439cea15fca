// internal/browser/allocator.go
package browser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/formprobe/internal/browser/stealth"
	"github.com/xkilldash9x/formprobe/internal/config"
)

// LaunchFlags returns the command-line switches layered over chromedp's
// defaults. A false value removes a switch the defaults would set.
func LaunchFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		// Required on hardened hosts and in containers.
		"no-sandbox":            true,
		"disable-dev-shm-usage":  true,
	}

	if !cfg.Headless {
		flags["headless"] = false
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight)
	} else {
		flags["start-maximized"] = true
	}
	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
	}
	if cfg.Stealth {
		for k, v := range stealth.AutomationFlags() {
			flags[k] = v
		}
	}

	// Config args win over everything above.
	for _, arg := range cfg.Args {
		key, value, hasValue := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
		if key == "" {
			continue
		}
		if hasValue {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for cfg.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := LaunchFlags(cfg)
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, chromedp.Flag(k, flags[k]))
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
