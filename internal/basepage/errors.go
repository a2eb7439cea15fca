package basepage

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLocatorTimeout matches every *LocatorTimeoutError via errors.Is.
	ErrLocatorTimeout = errors.New("locator timeout")
	// ErrOptionNotFound matches every *OptionNotFoundError via errors.Is.
	ErrOptionNotFound = errors.New("option not found")
	// ErrClickIntercepted is returned by Element.Click when another element
	// would receive the click.
	ErrClickIntercepted = errors.New("click intercepted by another element")
)

// LocatorTimeoutError reports that a locator did not reach the awaited
// state before its wait bound elapsed.
type LocatorTimeoutError struct {
	Locator Locator
	// Condition is "present" or "clickable".
	Condition string
	Timeout   time.Duration
	// Cause is the last driver error seen while polling, if any.
	Cause error
}

func (e *LocatorTimeoutError) Error() string {
	msg := fmt.Sprintf("%s not %s after %s", e.Locator, e.Condition, e.Timeout)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LocatorTimeoutError) Is(target error) bool { return target == ErrLocatorTimeout }
func (e *LocatorTimeoutError) Unwrap() error        { return e.Cause }

// OptionNotFoundError reports that a select element has no option matching
// the requested value or visible text.
type OptionNotFoundError struct {
	Locator Locator
	By      SelectBy
	Value   string
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("no option with %s %q in %s", e.By, e.Value, e.Locator)
}

func (e *OptionNotFoundError) Is(target error) bool { return target == ErrOptionNotFound }

// ClickError is returned when both the native and the scripted click fail.
type ClickError struct {
	Locator  Locator
	Native   error
	Scripted error
}

func (e *ClickError) Error() string {
	return fmt.Sprintf("click on %s failed: native: %v; scripted: %v", e.Locator, e.Native, e.Scripted)
}

func (e *ClickError) Unwrap() []error { return []error{e.Native, e.Scripted} }
