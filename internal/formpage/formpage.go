// Package formpage models the practice-automation "Form Fields" page.
package formpage

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formprobe/internal/basepage"
)

// DefaultURL is the public form the suite targets.
const DefaultURL = "https://practice-automation.com/form-fields/"

// Locators for the page's controls.
var (
	NameField     = basepage.CSS("#name-input")
	PasswordField = basepage.CSS("input[type='password']")
	EmailField    = basepage.CSS("input[type='email'], input[name*='email'], input[id*='email']")
	DrinkMilk     = basepage.XPath("//input[@value='Milk' or @value='milk']")
	DrinkCoffee   = basepage.XPath("//input[@value='Coffee' or @value='coffee']")
	ColorYellow   = basepage.XPath("//input[@value='Yellow' or @value='yellow']")
	Automation    = basepage.ID("automation")
	MessageArea   = basepage.ID("message")
	SubmitButton  = basepage.ID("submit-btn")

	// AutomationToolsList matches the items listed under the "Automation
	// tools" heading, whether the list follows the heading or shares its
	// parent.
	AutomationToolsList = basepage.XPath(
		"//*[contains(text(),'Automation tools') or contains(text(),'automation tools')]//following::ul[1]//li" +
			" | //*[contains(text(),'Automation tools') or contains(text(),'automation tools')]//parent::*//ul//li")
)

// FormPage drives the form. Fillers return the page so calls chain; the
// first failure sticks and is reported by Err.
type FormPage struct {
	*basepage.BasePage
	url string
}

// New binds the form model to a page. An empty url selects DefaultURL.
func New(page *basepage.BasePage, url string) *FormPage {
	if url == "" {
		url = DefaultURL
	}
	return &FormPage{BasePage: page, url: url}
}

// URL returns the address OpenFormPage navigates to.
func (f *FormPage) URL() string { return f.url }

func (f *FormPage) step(title string, fn func(p *basepage.BasePage) *basepage.BasePage) *FormPage {
	f.Step(title, func() error { return fn(f.BasePage).Err() })
	return f
}

func (f *FormPage) OpenFormPage(ctx context.Context) *FormPage {
	return f.step("Open the form page", func(p *basepage.BasePage) *basepage.BasePage {
		return p.Open(ctx, f.url)
	})
}

func (f *FormPage) FillName(ctx context.Context, name string) *FormPage {
	return f.step(fmt.Sprintf("Fill name: '%s'", name), func(p *basepage.BasePage) *basepage.BasePage {
		return p.Type(ctx, NameField, name)
	})
}

// FillPassword never puts the password in the report.
func (f *FormPage) FillPassword(ctx context.Context, password string) *FormPage {
	return f.step("Fill password", func(p *basepage.BasePage) *basepage.BasePage {
		return p.Type(ctx, PasswordField, password)
	})
}

func (f *FormPage) FillEmail(ctx context.Context, email string) *FormPage {
	return f.step(fmt.Sprintf("Fill email: '%s'", email), func(p *basepage.BasePage) *basepage.BasePage {
		return p.Type(ctx, EmailField, email)
	})
}

// SelectFavoriteDrinks ticks Milk and Coffee.
func (f *FormPage) SelectFavoriteDrinks(ctx context.Context) *FormPage {
	return f.step("Select drinks: Milk and Coffee", func(p *basepage.BasePage) *basepage.BasePage {
		return p.Click(ctx, DrinkMilk).Click(ctx, DrinkCoffee)
	})
}

func (f *FormPage) SelectYellowColor(ctx context.Context) *FormPage {
	return f.step("Select color: Yellow", func(p *basepage.BasePage) *basepage.BasePage {
		return p.Click(ctx, ColorYellow)
	})
}

// SelectAutomation picks the automation answer by option value.
func (f *FormPage) SelectAutomation(ctx context.Context, value string) *FormPage {
	return f.step(fmt.Sprintf("Select automation: '%s'", value), func(p *basepage.BasePage) *basepage.BasePage {
		return p.SelectByValue(ctx, Automation, value)
	})
}

func (f *FormPage) FillMessage(ctx context.Context, message string) *FormPage {
	return f.step(fmt.Sprintf("Fill message: '%s'", message), func(p *basepage.BasePage) *basepage.BasePage {
		return p.Type(ctx, MessageArea, message)
	})
}

func (f *FormPage) ClickSubmit(ctx context.Context) *FormPage {
	return f.step("Click Submit", func(p *basepage.BasePage) *basepage.BasePage {
		return p.Click(ctx, SubmitButton)
	})
}

// CountAutomationTools returns how many tools the page lists and attaches
// the count to the report. A list that never appears counts as zero.
func (f *FormPage) CountAutomationTools(ctx context.Context) int {
	var count int
	f.Step("Count tools under Automation tools", func() error {
		count = len(f.FindAll(ctx, AutomationToolsList))
		f.AttachText("Automation tools count", fmt.Sprintf("Tools found under Automation tools: %d", count))
		return nil
	})
	f.Logger().Debug("Counted automation tools", zap.Int("count", count))
	return count
}

// FindLongestAutomationTool returns the listed tool with the most
// characters, the first one on ties, or "" when none has text.
func (f *FormPage) FindLongestAutomationTool(ctx context.Context) string {
	var longest string
	f.Step("Find the longest tool under Automation tools", func() error {
		var texts []string
		for _, el := range f.FindAll(ctx, AutomationToolsList) {
			text, err := el.Text(ctx)
			if err != nil {
				f.Logger().Debug("Skipping tool without readable text", zap.Error(err))
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				texts = append(texts, text)
			}
		}
		longest = Longest(texts)
		if longest != "" {
			f.AttachText("Automation tools analysis",
				fmt.Sprintf("Longest tool: '%s' (length: %d)", longest, utf8.RuneCountInString(longest)))
		}
		return nil
	})
	return longest
}

// Longest returns the entry with the most characters, the earliest on ties.
func Longest(texts []string) string {
	var best string
	bestLen := -1
	for _, t := range texts {
		if n := utf8.RuneCountInString(t); n > bestLen {
			best, bestLen = t, n
		}
	}
	return best
}

// ToolsMessage analyses the tools list and builds the message text the
// scenarios type into the form.
func (f *FormPage) ToolsMessage(ctx context.Context) string {
	return FormatToolsMessage(f.CountAutomationTools(ctx), f.FindLongestAutomationTool(ctx))
}

// FormatToolsMessage renders the tools summary.
func FormatToolsMessage(count int, longest string) string {
	return fmt.Sprintf("Number of tools in Automation tools: %d. Longest tool: %s", count, longest)
}

// FillCompleteForm fills every field, with the tools summary as message.
func (f *FormPage) FillCompleteForm(ctx context.Context, name, password, email, automation string) *FormPage {
	f.Step("Fill the complete form", func() error {
		message := f.ToolsMessage(ctx)
		return f.FillName(ctx, name).
			FillPassword(ctx, password).
			SelectFavoriteDrinks(ctx).
			SelectYellowColor(ctx).
			SelectAutomation(ctx, automation).
			FillEmail(ctx, email).
			FillMessage(ctx, message).
			Err()
	})
	return f
}

// SubmitAndVerify submits the form and accepts the resulting alert. It
// reports whether the alert text equals expected, along with the text
// seen. No alert is a false result, not an error.
func (f *FormPage) SubmitAndVerify(ctx context.Context, expected string) (bool, string, error) {
	var (
		text  string
		found bool
	)
	f.Step("Submit the form and verify the result", func() error {
		if err := f.ClickSubmit(ctx).Err(); err != nil {
			return err
		}
		var err error
		text, found, err = f.AcceptAlert(ctx)
		if err != nil || !found {
			return err
		}
		f.AttachText("Submission result", fmt.Sprintf("Alert text: '%s'", text))
		return nil
	})
	if err := f.Err(); err != nil {
		return false, "", err
	}
	if !found {
		f.Logger().Info("No alert after submit")
		return false, "", nil
	}
	return text == expected, text, nil
}
