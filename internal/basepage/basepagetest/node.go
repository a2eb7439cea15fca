package basepagetest

import (
	"context"
	"sync"

	"github.com/xkilldash9x/formprobe/internal/basepage"
)

// Kind is the control a Node models.
type Kind int

const (
	KindText Kind = iota
	KindInput
	KindCheckbox
	KindRadio
	KindSelect
	KindButton
)

// Option is one <option> of a select node.
type Option struct {
	Value string
	Label string
}

// Node is a fake DOM element.
type Node struct {
	mu       sync.Mutex
	kind     Kind
	text     string
	value    string
	checked  bool
	invalid  bool
	options  []Option
	clicks   int
	scripted int

	// Hidden nodes are present but never clickable.
	Hidden bool
	// NativeClickErr, when set, fails native clicks.
	NativeClickErr error
	// OnClick runs after every successful click of either tier.
	OnClick func()
}

var _ basepage.Element = (*Node)(nil)

func Text(s string) *Node         { return &Node{kind: KindText, text: s} }
func Input() *Node                { return &Node{kind: KindInput} }
func Checkbox(value string) *Node { return &Node{kind: KindCheckbox, value: value} }
func Radio(value string) *Node    { return &Node{kind: KindRadio, value: value} }
func Button(label string) *Node   { return &Node{kind: KindButton, text: label} }
func Select(options ...Option) *Node {
	n := &Node{kind: KindSelect, options: options}
	if len(options) > 0 {
		n.value = options[0].Value
	}
	return n
}

func (n *Node) Clickable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return !n.Hidden, nil
}

func (n *Node) ScrollIntoView(ctx context.Context) error { return ctx.Err() }

func (n *Node) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.NativeClickErr != nil {
		return n.NativeClickErr
	}
	n.mu.Lock()
	n.clicks++
	n.toggle()
	n.mu.Unlock()
	n.fire()
	return nil
}

func (n *Node) ScriptClick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	n.scripted++
	n.toggle()
	n.mu.Unlock()
	n.fire()
	return nil
}

// toggle applies a click to checkable inputs. Callers hold n.mu.
func (n *Node) toggle() {
	switch n.kind {
	case KindCheckbox:
		n.checked = !n.checked
	case KindRadio:
		n.checked = true
	}
}

func (n *Node) fire() {
	if n.OnClick != nil {
		n.OnClick()
	}
}

func (n *Node) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.value = ""
	return nil
}

func (n *Node) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.value += text
	return nil
}

func (n *Node) Text(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text, ctx.Err()
}

func (n *Node) Value(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value, ctx.Err()
}

func (n *Node) SelectOption(ctx context.Context, by basepage.SelectBy, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, o := range n.options {
		if (by == basepage.ByValue && o.Value == value) || (by == basepage.ByVisibleText && o.Label == value) {
			n.value = o.Value
			return true, nil
		}
	}
	return false, nil
}

// Checked reports whether a checkbox or radio is selected.
func (n *Node) Checked() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.checked
}

// Current returns the value without a context.
func (n *Node) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

// MarkInvalid flags the node the way a failed validation would.
func (n *Node) MarkInvalid(invalid bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invalid = invalid
}

// Invalid reports whether validation flagged the node.
func (n *Node) Invalid() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.invalid
}

// Clicks returns the native and scripted click counts.
func (n *Node) Clicks() (native, scripted int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clicks, n.scripted
}
