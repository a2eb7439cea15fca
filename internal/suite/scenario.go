// Package suite defines the form scenarios and runs them, one browser
// session each, into a report.
package suite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/formprobe/internal/formpage"
)

// ErrAssertion marks a scenario that ran to completion but observed the
// wrong outcome.
var ErrAssertion = errors.New("assertion failed")

// Report labels carried by every scenario.
const (
	LabelEpic     = "epic"
	LabelFeature  = "feature"
	LabelStory    = "story"
	LabelSeverity = "severity"
)

// Scenario is one end-to-end test case against the form.
type Scenario struct {
	ID          string
	Title       string
	Description string
	Labels      map[string]string
	// Run drives the page. expectedAlert is the success message the target
	// shows after a valid submission.
	Run func(ctx context.Context, f *formpage.FormPage, expectedAlert string) error
}

// Fixed test data for the built-in scenarios.
const (
	ValidName          = "TestUser"
	ValidPassword      = "SecurePass123!"
	ValidEmail         = "testuser@example.com"
	IncompletePassword = "TestPassword123"
	IncompleteEmail    = "test@example.com"
	AutomationAnswer   = "yes"
)

var registry = []Scenario{
	{
		ID:          "successful_submission",
		Title:       "Successful form submission with valid data",
		Description: "Expected result: an alert with the text \"Message received!\" appears.",
		Labels: map[string]string{
			LabelEpic:     "Web form testing",
			LabelFeature:  "Form filling and submission",
			LabelStory:    "Positive case",
			LabelSeverity: "critical",
		},
		Run: successfulSubmission,
	},
	{
		ID:          "incomplete_submission",
		Title:       "Submission of an incomplete form",
		Description: "Negative case: submitting without the required name must not produce the success alert.",
		Labels: map[string]string{
			LabelEpic:     "Web form testing",
			LabelFeature:  "Form filling and submission",
			LabelStory:    "Negative case",
			LabelSeverity: "normal",
		},
		Run: incompleteSubmission,
	},
}

// Scenarios returns every built-in scenario in registration order.
func Scenarios() []Scenario {
	return append([]Scenario(nil), registry...)
}

// IDs lists the built-in scenario IDs, sorted.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for _, s := range registry {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

// Select returns the scenarios named by ids in registration order. No ids
// selects all of them.
func Select(ids []string) ([]Scenario, error) {
	if len(ids) == 0 {
		return Scenarios(), nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = true
	}
	var out []Scenario
	for _, s := range registry {
		if want[s.ID] {
			out = append(out, s)
			delete(want, s.ID)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for id := range want {
			unknown = append(unknown, id)
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown scenario(s) %s; available: %s",
			strings.Join(unknown, ", "), strings.Join(IDs(), ", "))
	}
	return out, nil
}

func successfulSubmission(ctx context.Context, f *formpage.FormPage, expectedAlert string) error {
	f.OpenFormPage(ctx).
		FillCompleteForm(ctx, ValidName, ValidPassword, ValidEmail, AutomationAnswer).
		CaptureScreenshot(ctx, "Filled form")
	if err := f.Err(); err != nil {
		return err
	}

	ok, text, err := f.SubmitAndVerify(ctx, expectedAlert)
	if err != nil {
		return err
	}
	if !ok {
		if text == "" {
			return fmt.Errorf("%w: no confirmation alert appeared, want %q", ErrAssertion, expectedAlert)
		}
		return fmt.Errorf("%w: confirmation alert said %q, want %q", ErrAssertion, text, expectedAlert)
	}
	return nil
}

// incompleteSubmission only checks that the success alert does not show.
// It cannot tell validation from an unrelated error or a page that ignores
// the click.
func incompleteSubmission(ctx context.Context, f *formpage.FormPage, expectedAlert string) error {
	f.OpenFormPage(ctx).Step("Fill the form without the required name", func() error {
		message := f.ToolsMessage(ctx)
		return f.FillPassword(ctx, IncompletePassword).
			SelectFavoriteDrinks(ctx).
			SelectYellowColor(ctx).
			SelectAutomation(ctx, AutomationAnswer).
			FillEmail(ctx, IncompleteEmail).
			FillMessage(ctx, message).
			Err()
	})
	f.CaptureScreenshot(ctx, "Form without name")
	f.ClickSubmit(ctx)
	if err := f.Err(); err != nil {
		return err
	}

	var text string
	f.Step("Check the form was not submitted without the required field", func() error {
		var err error
		text, _, err = f.AcceptAlert(ctx)
		return err
	})
	if err := f.Err(); err != nil {
		return err
	}
	if text == expectedAlert {
		return fmt.Errorf("%w: form was submitted without the required name field; got alert %q", ErrAssertion, text)
	}
	return nil
}
