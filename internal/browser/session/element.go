// internal/browser/session/element.go
package session

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/formprobe/internal/basepage"
)

// Scripts run with `this` bound to the node. Each returns a value so the
// result can be decoded by value.
const (
	jsClickable = `function() {
	if (!this.isConnected) return false;
	const style = window.getComputedStyle(this);
	if (style.visibility === 'hidden' || style.display === 'none') return false;
	const rect = this.getBoundingClientRect();
	if (rect.width === 0 && rect.height === 0) return false;
	return !this.disabled;
}`

	jsScrollIntoView = `function() {
	this.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
	return true;
}`

	// jsHitTest reports whether a pointer at the node's center lands on it.
	jsHitTest = `function() {
	const rect = this.getBoundingClientRect();
	const hit = document.elementFromPoint(rect.left + rect.width / 2, rect.top + rect.height / 2);
	return hit !== null && (hit === this || this.contains(hit));
}`

	jsClick = `function() { this.click(); return true; }`

	jsClear = `function() {
	if (typeof this.focus === 'function') this.focus();
	if ('value' in this) this.value = '';
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
}`

	jsText = `function() { return (this.innerText !== undefined ? this.innerText : this.textContent) || ''; }`

	jsValue = `function() { return this.value === undefined || this.value === null ? '' : String(this.value); }`

	jsSelectOption = `function(byValue, wanted) {
	if (!this.options) return false;
	const norm = (s) => s.replace(/\s+/g, ' ').trim();
	for (const opt of this.options) {
		const match = byValue ? opt.value === wanted : norm(opt.text) === norm(wanted);
		if (!match) continue;
		opt.selected = true;
		this.value = opt.value;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	}
	return false;
}`
)

// element is a node handle from a single Query.
type element struct {
	s    *Session
	node *cdp.Node
}

var _ basepage.Element = (*element)(nil)

func (e *element) call(fn string, res interface{}, args ...interface{}) chromedp.Action {
	return callOnNode(e.node, fn, res, args...)
}

// callOnNode resolves node to a remote object and calls fn with `this`
// bound to it. The remote object is released afterwards.
func callOnNode(node *cdp.Node, fn string, res interface{}, args ...interface{}) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node %d: %w", node.NodeID, err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		return chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		}, args...).Do(ctx)
	})
}

func (e *element) Clickable(ctx context.Context) (bool, error) {
	var ok bool
	if err := e.s.RunActions(ctx, e.call(jsClickable, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	var ok bool
	return e.s.RunActions(ctx, e.call(jsScrollIntoView, &ok))
}

// Click dispatches a real mouse press and release at the node's center,
// after checking that the node would receive it.
func (e *element) Click(ctx context.Context) error {
	var onTop bool
	if err := e.s.RunActions(ctx, e.call(jsHitTest, &onTop)); err != nil {
		return fmt.Errorf("hit test: %w", err)
	}
	if !onTop {
		return basepage.ErrClickIntercepted
	}
	return e.s.runInteractive(ctx, chromedp.MouseClickNode(e.node))
}

func (e *element) ScriptClick(ctx context.Context) error {
	var ok bool
	return e.s.runInteractive(ctx, e.call(jsClick, &ok))
}

func (e *element) Clear(ctx context.Context) error {
	var ok bool
	return e.s.RunActions(ctx, e.call(jsClear, &ok))
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return e.s.RunActions(ctx, chromedp.KeyEventNode(e.node, text))
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.s.RunActions(ctx, e.call(jsText, &text))
	return text, err
}

func (e *element) Value(ctx context.Context) (string, error) {
	var value string
	err := e.s.RunActions(ctx, e.call(jsValue, &value))
	return value, err
}

func (e *element) SelectOption(ctx context.Context, by basepage.SelectBy, value string) (bool, error) {
	var matched bool
	err := e.s.RunActions(ctx, e.call(jsSelectOption, &matched, by == basepage.ByValue, value))
	return matched, err
}
