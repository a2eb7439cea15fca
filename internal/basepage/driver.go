package basepage

import (
	"context"
	"fmt"
)

// Driver is the browser session surface the page layer needs. A Driver is
// used by one goroutine at a time.
type Driver interface {
	// Navigate starts loading url and returns without waiting for the page
	// to become ready.
	Navigate(ctx context.Context, url string) error
	// Query returns the elements currently matching loc without waiting.
	// No match is an empty slice, not an error.
	Query(ctx context.Context, loc Locator) ([]Element, error)
	// Screenshot captures the visible page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// PendingDialog reports the JavaScript dialog currently open, if any.
	PendingDialog() (Dialog, bool)
	// HandleDialog accepts or dismisses the open dialog.
	HandleDialog(ctx context.Context, accept bool) error
}

// Element is a DOM node resolved for a single render. Handles are not kept
// between interactions.
type Element interface {
	// Clickable reports whether the node is attached, visible and enabled.
	Clickable(ctx context.Context) (bool, error)
	// ScrollIntoView centers the node in the viewport.
	ScrollIntoView(ctx context.Context) error
	// Click performs a native pointer click at the node's center.
	Click(ctx context.Context) error
	// ScriptClick dispatches a click from page script.
	ScriptClick(ctx context.Context) error
	// Clear empties the node's value and fires input and change events.
	Clear(ctx context.Context) error
	// SendKeys types text into the focused node. Existing content is kept.
	SendKeys(ctx context.Context, text string) error
	// Text returns the rendered text of the node, or "" when it has none.
	Text(ctx context.Context) (string, error)
	// Value returns the node's current value property, or "" when unset.
	Value(ctx context.Context) (string, error)
	// SelectOption selects the first option of a <select> matching value.
	// It reports false when no option matches.
	SelectOption(ctx context.Context, by SelectBy, value string) (bool, error)
}

// Dialog is an open JavaScript dialog (alert, confirm, prompt, beforeunload).
type Dialog struct {
	Type    string
	Message string
}

// SelectBy chooses how SelectOption matches options.
type SelectBy int

const (
	ByValue SelectBy = iota
	ByVisibleText
)

func (b SelectBy) String() string {
	switch b {
	case ByValue:
		return "value"
	case ByVisibleText:
		return "visible text"
	default:
		return fmt.Sprintf("SelectBy(%d)", int(b))
	}
}

// ClickStrategy is the tier that completed a click.
type ClickStrategy int

const (
	ClickNative ClickStrategy = iota
	ClickScripted
)

func (s ClickStrategy) String() string {
	if s == ClickScripted {
		return "scripted"
	}
	return "native"
}
