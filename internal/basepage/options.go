package basepage

import (
	"time"

	"github.com/xkilldash9x/formprobe/internal/config"
)

const (
	// DefaultTimeout bounds every wait that does not set its own.
	DefaultTimeout           = 10 * time.Second
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultScreenshotTimeout = 5 * time.Second
)

// Settings holds the wait bounds shared by a Waiter and its page.
type Settings struct {
	Timeout           time.Duration
	PollInterval      time.Duration
	ScreenshotTimeout time.Duration
}

// DefaultSettings returns the built-in wait bounds.
func DefaultSettings() Settings {
	return Settings{
		Timeout:           DefaultTimeout,
		PollInterval:      DefaultPollInterval,
		ScreenshotTimeout: DefaultScreenshotTimeout,
	}
}

// SettingsFromConfig maps the wait section of the configuration, keeping the
// built-in value for anything unset.
func SettingsFromConfig(cfg config.WaitConfig) Settings {
	s := DefaultSettings()
	if cfg.DefaultTimeout > 0 {
		s.Timeout = cfg.DefaultTimeout
	}
	if cfg.PollInterval > 0 {
		s.PollInterval = cfg.PollInterval
	}
	if cfg.ScreenshotTimeout > 0 {
		s.ScreenshotTimeout = cfg.ScreenshotTimeout
	}
	return s
}

// WaitOption overrides the wait bound of a single call.
type WaitOption func(*waitParams)

type waitParams struct {
	timeout time.Duration
}

// WithTimeout bounds one wait by d instead of the configured default.
func WithTimeout(d time.Duration) WaitOption {
	return func(p *waitParams) {
		if d >= 0 {
			p.timeout = d
		}
	}
}

func (s Settings) resolve(opts []WaitOption) waitParams {
	p := waitParams{timeout: s.Timeout}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
