package basepage

import "fmt"

// Strategy selects how a Locator's selector is interpreted.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
	StrategyID    Strategy = "id"
)

// Locator identifies elements on a page. It is a plain value and is never
// bound to a particular render of the DOM.
type Locator struct {
	Strategy Strategy
	Selector string
}

func CSS(selector string) Locator   { return Locator{Strategy: StrategyCSS, Selector: selector} }
func XPath(selector string) Locator { return Locator{Strategy: StrategyXPath, Selector: selector} }
func ID(id string) Locator          { return Locator{Strategy: StrategyID, Selector: id} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Strategy, l.Selector)
}

// Validate rejects locators no driver can resolve.
func (l Locator) Validate() error {
	switch l.Strategy {
	case StrategyCSS, StrategyXPath, StrategyID:
	default:
		return fmt.Errorf("unknown locator strategy %q", l.Strategy)
	}
	if l.Selector == "" {
		return fmt.Errorf("locator %s has an empty selector", l.Strategy)
	}
	return nil
}
