// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Reporter collects finished test cases and writes them out.
type Reporter interface {
	// Write records a single finished test case and persists its attachments.
	Write(result *CaseResult) error
	// Close finalizes the report file.
	Close() error
}

// RunSummary is the aggregate written alongside the cases.
type RunSummary struct {
	RunID   string    `json:"run_id"`
	Name    string    `json:"name"`
	Start   time.Time `json:"start"`
	Stop    time.Time `json:"stop"`
	Total   int       `json:"total"`
	Passed  int       `json:"passed"`
	Failed  int       `json:"failed"`
	Skipped int       `json:"skipped"`
}

// Summarize counts case outcomes.
func Summarize(runID, name string, start, stop time.Time, cases []*CaseResult) RunSummary {
	s := RunSummary{RunID: runID, Name: name, Start: start, Stop: stop, Total: len(cases)}
	for _, c := range cases {
		switch c.Status {
		case StatusPassed:
			s.Passed++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// Options carries run metadata into a Reporter.
type Options struct {
	RunID string
	Name  string
}

// New creates a new reporter for format that writes under dir. Attachments
// land in dir/attachments.
func New(format, dir string, opts Options) (Reporter, error) {
	if dir == "" {
		return nil, fmt.Errorf("report directory must not be empty")
	}
	if err := os.MkdirAll(filepath.Join(dir, attachmentsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	switch strings.ToLower(format) {
	case "json":
		return &JSONReporter{collector: collector{dir: dir, opts: opts, start: time.Now()}}, nil
	case "junit":
		return &JUnitReporter{collector: collector{dir: dir, opts: opts, start: time.Now()}}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

const attachmentsDir = "attachments"

// collector holds the state shared by the file-based reporters.
type collector struct {
	dir   string
	opts  Options
	start time.Time

	mu     sync.Mutex
	cases  []*CaseResult
	closed bool
}

func (c *collector) add(result *CaseResult) error {
	if result == nil {
		return fmt.Errorf("cannot write a nil case result")
	}
	for _, a := range result.AllAttachments() {
		if err := c.persist(a); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("reporter is closed")
	}
	c.cases = append(c.cases, result)
	return nil
}

// persist writes the attachment payload once and records its relative path.
func (c *collector) persist(a *Attachment) error {
	if a.Path != "" {
		return nil
	}
	rel := filepath.Join(attachmentsDir, a.ID+a.Kind.Extension())
	if err := os.WriteFile(filepath.Join(c.dir, rel), a.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write attachment %q: %w", a.Name, err)
	}
	a.Path = filepath.ToSlash(rel)
	return nil
}

// seal marks the collector closed and returns the cases and summary.
func (c *collector) seal() ([]*CaseResult, RunSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, RunSummary{}, false
	}
	c.closed = true
	cases := append([]*CaseResult(nil), c.cases...)
	return cases, Summarize(c.opts.RunID, c.opts.Name, c.start, time.Now(), cases), true
}
