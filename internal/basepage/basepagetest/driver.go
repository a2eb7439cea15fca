// Package basepagetest provides an in-memory basepage.Driver for tests of
// code built on the page layer.
package basepagetest

import (
	"context"
	"errors"
	"sync"

	"github.com/xkilldash9x/formprobe/internal/basepage"
)

// PNG is the payload Screenshot returns.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// ErrDialogOpen mirrors a real browser refusing work behind a dialog.
var ErrDialogOpen = errors.New("a javascript dialog is open")

// Driver is a scripted page. Locators resolve to registered nodes once a
// page has been navigated to; before that every query is empty.
type Driver struct {
	mu          sync.Mutex
	nodes       map[string][]*Node
	loaded      bool
	dialog      *basepage.Dialog
	navigations []string
	shots       int
	handled     []bool

	// NavigateErr, when set, fails every navigation.
	NavigateErr error
}

var _ basepage.Driver = (*Driver)(nil)

func NewDriver() *Driver {
	return &Driver{nodes: make(map[string][]*Node)}
}

// Add registers nodes as the matches for loc.
func (d *Driver) Add(loc basepage.Locator, nodes ...*Node) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[loc.String()] = append(d.nodes[loc.String()], nodes...)
	return d
}

// OpenDialog raises a JavaScript dialog on the page.
func (d *Driver) OpenDialog(typ, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialog == nil {
		d.dialog = &basepage.Dialog{Type: typ, Message: message}
	}
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NavigateErr != nil {
		return d.NavigateErr
	}
	d.navigations = append(d.navigations, url)
	d.loaded = true
	return nil
}

func (d *Driver) Query(ctx context.Context, loc basepage.Locator) ([]basepage.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialog != nil {
		return nil, ErrDialogOpen
	}
	if !d.loaded {
		return []basepage.Element{}, nil
	}
	matches := d.nodes[loc.String()]
	els := make([]basepage.Element, 0, len(matches))
	for _, n := range matches {
		els = append(els, n)
	}
	return els, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialog != nil {
		return nil, ErrDialogOpen
	}
	d.shots++
	return PNG, nil
}

func (d *Driver) PendingDialog() (basepage.Dialog, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialog == nil {
		return basepage.Dialog{}, false
	}
	return *d.dialog, true
}

func (d *Driver) HandleDialog(_ context.Context, accept bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialog == nil {
		return errors.New("no javascript dialog is open")
	}
	d.dialog = nil
	d.handled = append(d.handled, accept)
	return nil
}

// Navigations lists every URL navigated to, in order.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Screenshots counts captured screenshots.
func (d *Driver) Screenshots() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shots
}

// Handled lists the accept flag of every handled dialog.
func (d *Driver) Handled() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.handled...)
}
