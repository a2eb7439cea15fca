// internal/reporting/junit_reporter.go
package reporting

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// JUnitFileName is the report file written by JUnitReporter.
const JUnitFileName = "junit.xml"

// JUnitReporter writes a JUnit XML document on Close. Steps are flattened
// into system-out and attachments are referenced with the
// [[ATTACHMENT|path]] convention understood by most CI viewers.
type JUnitReporter struct {
	collector
}

func (r *JUnitReporter) Write(result *CaseResult) error { return r.add(result) }

func (r *JUnitReporter) Close() error {
	cases, summary, ok := r.seal()
	if !ok {
		return nil
	}
	doc := BuildJUnit(summary, cases)
	doc.Indent(2)
	path := filepath.Join(r.dir, JUnitFileName)
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("failed to write junit report %s: %w", path, err)
	}
	return nil
}

// BuildJUnit renders the run as a JUnit document.
func BuildJUnit(summary RunSummary, cases []*CaseResult) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", summary.Name)
	suites.CreateAttr("tests", strconv.Itoa(summary.Total))
	suites.CreateAttr("failures", strconv.Itoa(summary.Failed))
	suites.CreateAttr("skipped", strconv.Itoa(summary.Skipped))

	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", summary.Name)
	suite.CreateAttr("id", summary.RunID)
	suite.CreateAttr("tests", strconv.Itoa(summary.Total))
	suite.CreateAttr("failures", strconv.Itoa(summary.Failed))
	suite.CreateAttr("skipped", strconv.Itoa(summary.Skipped))
	suite.CreateAttr("timestamp", summary.Start.UTC().Format("2006-01-02T15:04:05"))
	suite.CreateAttr("time", seconds(summary.Stop.Sub(summary.Start).Seconds()))

	for _, c := range cases {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", c.Name)
		tc.CreateAttr("classname", classname(c))
		tc.CreateAttr("time", seconds(c.Duration().Seconds()))

		if len(c.Labels) > 0 {
			props := tc.CreateElement("properties")
			keys := make([]string, 0, len(c.Labels))
			for k := range c.Labels {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				p := props.CreateElement("property")
				p.CreateAttr("name", k)
				p.CreateAttr("value", c.Labels[k])
			}
		}

		switch c.Status {
		case StatusFailed, StatusRunning:
			f := tc.CreateElement("failure")
			f.CreateAttr("message", c.Failure)
			f.SetText(c.Failure)
		case StatusSkipped:
			s := tc.CreateElement("skipped")
			s.CreateAttr("message", c.Failure)
		}

		tc.CreateElement("system-out").SetText(systemOut(c))
	}
	return doc
}

func classname(c *CaseResult) string {
	if f := c.Labels["feature"]; f != "" {
		return f
	}
	return "formprobe"
}

func seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func systemOut(c *CaseResult) string {
	var b strings.Builder
	var walk func(steps []*StepRecord, depth int)
	walk = func(steps []*StepRecord, depth int) {
		for _, s := range steps {
			fmt.Fprintf(&b, "%s[%s] %s", strings.Repeat("  ", depth), s.Status, s.Title)
			if s.Error != "" {
				fmt.Fprintf(&b, ": %s", s.Error)
			}
			b.WriteByte('\n')
			walk(s.Steps, depth+1)
		}
	}
	walk(c.Steps, 0)
	for _, a := range c.AllAttachments() {
		if a.Path == "" {
			continue
		}
		fmt.Fprintf(&b, "[[ATTACHMENT|%s]] %s\n", a.Path, a.Name)
	}
	return b.String()
}
