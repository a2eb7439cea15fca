package basepage

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// -- testify mocks --

type mockDriver struct{ mock.Mock }

func (m *mockDriver) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockDriver) Query(ctx context.Context, loc Locator) ([]Element, error) {
	args := m.Called(ctx, loc)
	els, _ := args.Get(0).([]Element)
	return els, args.Error(1)
}

func (m *mockDriver) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	png, _ := args.Get(0).([]byte)
	return png, args.Error(1)
}

func (m *mockDriver) PendingDialog() (Dialog, bool) {
	args := m.Called()
	return args.Get(0).(Dialog), args.Bool(1)
}

func (m *mockDriver) HandleDialog(ctx context.Context, accept bool) error {
	return m.Called(ctx, accept).Error(0)
}

type mockElement struct{ mock.Mock }

func (m *mockElement) Clickable(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockElement) ScrollIntoView(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockElement) Click(ctx context.Context) error          { return m.Called(ctx).Error(0) }
func (m *mockElement) ScriptClick(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *mockElement) Clear(ctx context.Context) error          { return m.Called(ctx).Error(0) }

func (m *mockElement) SendKeys(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *mockElement) Text(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockElement) Value(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockElement) SelectOption(ctx context.Context, by SelectBy, value string) (bool, error) {
	args := m.Called(ctx, by, value)
	return args.Bool(0), args.Error(1)
}

// -- stateful fake --

// fakeField behaves like a text input: Clear empties it, SendKeys appends.
type fakeField struct {
	mu    sync.Mutex
	value string
}

func (f *fakeField) Clickable(context.Context) (bool, error) { return true, nil }
func (f *fakeField) ScrollIntoView(context.Context) error    { return nil }
func (f *fakeField) Click(context.Context) error             { return nil }
func (f *fakeField) ScriptClick(context.Context) error       { return nil }

func (f *fakeField) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = ""
	return nil
}

func (f *fakeField) SendKeys(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value += text
	return nil
}

func (f *fakeField) Text(ctx context.Context) (string, error) { return f.Value(ctx) }

func (f *fakeField) Value(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, nil
}

func (f *fakeField) SelectOption(context.Context, SelectBy, string) (bool, error) {
	return false, nil
}

// staticDriver resolves every locator to a fixed element set and can be
// told to show a dialog after a number of PendingDialog polls.
type staticDriver struct {
	mu          sync.Mutex
	elements    map[Locator][]Element
	dialog      *Dialog
	dialogAfter int
	polls       int
	handled     []bool
	shots       int
}

func (d *staticDriver) Navigate(context.Context, string) error { return nil }

func (d *staticDriver) Query(_ context.Context, loc Locator) ([]Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Element(nil), d.elements[loc]...), nil
}

func (d *staticDriver) Screenshot(context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shots++
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (d *staticDriver) PendingDialog() (Dialog, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.polls++
	if d.dialog == nil || d.polls <= d.dialogAfter {
		return Dialog{}, false
	}
	return *d.dialog, true
}

func (d *staticDriver) HandleDialog(_ context.Context, accept bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handled = append(d.handled, accept)
	d.dialog = nil
	return nil
}
