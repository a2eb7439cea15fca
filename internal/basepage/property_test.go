package basepage

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/xkilldash9x/formprobe/internal/reporting"
)

// Typing the same text any number of times leaves exactly that text.
func TestProperty_TypeIsIdempotent(t *testing.T) {
	loc := CSS("#message")
	rapid.Check(t, func(rt *rapid.T) {
		initial := rapid.String().Draw(rt, "initial")
		text := rapid.String().Draw(rt, "text")
		repeats := rapid.IntRange(1, 4).Draw(rt, "repeats")

		field := &fakeField{value: initial}
		d := &staticDriver{elements: map[Locator][]Element{loc: {field}}}
		p := New(d, nil, zap.NewNop(), fastSettings(time.Second))

		for i := 0; i < repeats; i++ {
			if err := p.Type(context.Background(), loc, text).Err(); err != nil {
				rt.Fatalf("type: %v", err)
			}
		}
		if got, _ := field.Value(context.Background()); got != text {
			rt.Fatalf("field = %q after %d types, want %q", got, repeats, text)
		}
	})
}

// For any set of present elements FindAll returns all of them, and for an
// absent locator it returns an empty slice without a diagnostic.
func TestProperty_FindAllNeverFails(t *testing.T) {
	present := XPath("//li")
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(rt, "n")
		els := make([]Element, n)
		for i := range els {
			els[i] = &fakeField{}
		}
		d := &staticDriver{elements: map[Locator][]Element{present: els}}
		rec := reporting.NewRecorder("prop", "", nil)
		w := NewWaiter(d, rec, zap.NewNop(), fastSettings(10*time.Millisecond))

		got := w.FindAll(context.Background(), present)
		if got == nil || len(got) != n {
			rt.Fatalf("FindAll returned %d elements (nil=%v), want %d", len(got), got == nil, n)
		}
		if len(rec.Attachments()) != 0 || d.shots != 0 {
			rt.Fatalf("FindAll must not capture diagnostics")
		}
	})
}

// A missing locator always ends in exactly one timeout error and exactly one
// screenshot, no earlier than the bound.
func TestProperty_TimeoutTakesOneScreenshot(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		timeout := time.Duration(rapid.IntRange(1, 25).Draw(rt, "timeout_ms")) * time.Millisecond
		sel := rapid.StringMatching(`#[a-z]{1,8}`).Draw(rt, "selector")
		clickable := rapid.Bool().Draw(rt, "clickable")

		d := &staticDriver{}
		rec := reporting.NewRecorder("prop", "", nil)
		w := NewWaiter(d, rec, zap.NewNop(), fastSettings(timeout))

		start := time.Now()
		var err error
		if clickable {
			_, err = w.WaitForClickable(context.Background(), CSS(sel))
		} else {
			_, err = w.WaitForPresence(context.Background(), CSS(sel))
		}
		if !errors.Is(err, ErrLocatorTimeout) {
			rt.Fatalf("err = %v, want locator timeout", err)
		}
		if elapsed := time.Since(start); elapsed < timeout {
			rt.Fatalf("returned after %s, before the %s bound", elapsed, timeout)
		}
		if d.shots != 1 || len(rec.Attachments()) != 1 {
			rt.Fatalf("shots=%d attachments=%d, want 1 and 1", d.shots, len(rec.Attachments()))
		}
	})
}
