// Package formpagetest builds an in-memory copy of the practice form on top
// of basepagetest, for tests that drive formpage without a browser.
package formpagetest

import (
	"strings"

	"github.com/xkilldash9x/formprobe/internal/basepage/basepagetest"
	"github.com/xkilldash9x/formprobe/internal/formpage"
)

// SuccessAlert is what the form shows after a valid submission.
const SuccessAlert = "Message received!"

// DefaultTools are the tools the live page lists.
var DefaultTools = []string{"Selenium", "Playwright", "Cypress", "Appium", "Katalon Studio"}

// Options tweak the fake form.
type Options struct {
	// Tools overrides DefaultTools. Use an empty non-nil slice for no list.
	Tools []string
	// SubmitNativeClickErr makes native clicks on Submit fail.
	SubmitNativeClickErr error
	// AlertOnInvalid makes an invalid submission raise this alert instead
	// of silently marking the name field.
	AlertOnInvalid string
	// SuccessText replaces SuccessAlert.
	SuccessText string
	// NameOptional accepts submissions without a name.
	NameOptional bool
}

// Form is the fake page with handles on every control.
type Form struct {
	*basepagetest.Driver

	Name, Password, Email, Message *basepagetest.Node
	Milk, Coffee, Yellow           *basepagetest.Node
	Automation, Submit             *basepagetest.Node
	Tools                          []*basepagetest.Node
}

// New builds the form. Submitting with a name and an email raises
// SuccessAlert; anything else marks the missing field invalid.
func New(opts Options) *Form {
	tools := opts.Tools
	if tools == nil {
		tools = DefaultTools
	}

	automation := basepagetest.Select(
		basepagetest.Option{Value: "default", Label: "Choose an option"},
		basepagetest.Option{Value: "yes", Label: "Yes"},
		basepagetest.Option{Value: "no", Label: "No"},
		basepagetest.Option{Value: "undecided", Label: "Undecided"},
	)
	f := &Form{
		Driver:     basepagetest.NewDriver(),
		Name:       basepagetest.Input(),
		Password:   basepagetest.Input(),
		Email:      basepagetest.Input(),
		Message:    basepagetest.Input(),
		Milk:       basepagetest.Checkbox("Milk"),
		Coffee:     basepagetest.Checkbox("Coffee"),
		Yellow:     basepagetest.Radio("Yellow"),
		Automation: automation,
		Submit:     basepagetest.Button("Submit"),
	}
	f.Submit.NativeClickErr = opts.SubmitNativeClickErr
	f.Submit.OnClick = func() { f.submit(opts) }

	for _, t := range tools {
		f.Tools = append(f.Tools, basepagetest.Text(t))
	}

	f.Add(formpage.NameField, f.Name).
		Add(formpage.PasswordField, f.Password).
		Add(formpage.EmailField, f.Email).
		Add(formpage.MessageArea, f.Message).
		Add(formpage.DrinkMilk, f.Milk).
		Add(formpage.DrinkCoffee, f.Coffee).
		Add(formpage.ColorYellow, f.Yellow).
		Add(formpage.Automation, f.Automation).
		Add(formpage.SubmitButton, f.Submit).
		Add(formpage.AutomationToolsList, f.Tools...)
	return f
}

func (f *Form) submit(opts Options) {
	nameOK := opts.NameOptional || strings.TrimSpace(f.Name.Current()) != ""
	emailOK := strings.TrimSpace(f.Email.Current()) != ""
	f.Name.MarkInvalid(!nameOK)
	f.Email.MarkInvalid(!emailOK)
	if nameOK && emailOK {
		text := opts.SuccessText
		if text == "" {
			text = SuccessAlert
		}
		f.OpenDialog("alert", text)
		return
	}
	if opts.AlertOnInvalid != "" {
		f.OpenDialog("alert", opts.AlertOnInvalid)
	}
}
