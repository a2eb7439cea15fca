// internal/reporting/recorder.go
package reporting

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a step or a test case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	// StatusRunning marks steps that were never ended.
	StatusRunning Status = "running"
)

// Attachment is a named payload captured during a test case. Path is set
// once a Reporter has written the payload to disk.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Path string `json:"path,omitempty"`
	Size int    `json:"size"`
	Data []byte `json:"-"`
}

// StepRecord is one (possibly nested) step of a test case.
type StepRecord struct {
	Title       string        `json:"title"`
	Status      Status        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Start       time.Time     `json:"start"`
	Stop        time.Time     `json:"stop"`
	Steps       []*StepRecord `json:"steps,omitempty"`
	Attachments []*Attachment `json:"attachments,omitempty"`
}

// CaseResult is the complete record of one test case.
type CaseResult struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Status      Status            `json:"status"`
	Failure     string            `json:"failure,omitempty"`
	Start       time.Time         `json:"start"`
	Stop        time.Time         `json:"stop"`
	Steps       []*StepRecord     `json:"steps,omitempty"`
	Attachments []*Attachment     `json:"attachments,omitempty"`
}

// Duration is the wall time between start and stop.
func (c *CaseResult) Duration() time.Duration { return c.Stop.Sub(c.Start) }

// AllAttachments returns case-level attachments followed by step
// attachments in depth-first order.
func (c *CaseResult) AllAttachments() []*Attachment {
	out := append([]*Attachment(nil), c.Attachments...)
	var walk func(steps []*StepRecord)
	walk = func(steps []*StepRecord) {
		for _, s := range steps {
			out = append(out, s.Attachments...)
			walk(s.Steps)
		}
	}
	walk(c.Steps)
	return out
}

// Recorder is the in-memory Sink for a single test case. Steps nest: a step
// started while another is open becomes its child, and attachments go to the
// innermost open step.
type Recorder struct {
	mu     sync.Mutex
	result *CaseResult
	stack  []*StepRecord
	now    func() time.Time
}

// NewRecorder starts recording a test case.
func NewRecorder(name, description string, labels map[string]string) *Recorder {
	r := &Recorder{now: time.Now}
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	r.result = &CaseResult{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Labels:      copied,
		Status:      StatusRunning,
		Start:       r.now(),
	}
	return r
}

type recordedStep struct {
	r    *Recorder
	rec  *StepRecord
	once sync.Once
}

func (s *recordedStep) End(err error) {
	s.once.Do(func() { s.r.endStep(s.rec, err) })
}

// StartStep opens a step under the innermost open step.
func (r *Recorder) StartStep(title string) Step {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &StepRecord{Title: title, Status: StatusRunning, Start: r.now()}
	if n := len(r.stack); n > 0 {
		parent := r.stack[n-1]
		parent.Steps = append(parent.Steps, rec)
	} else {
		r.result.Steps = append(r.result.Steps, rec)
	}
	r.stack = append(r.stack, rec)
	return &recordedStep{r: r, rec: rec}
}

func (r *Recorder) endStep(rec *StepRecord, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	closeStep(rec, err, r.now())
	// Ending an outer step also closes any children left open.
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i] == rec {
			for _, child := range r.stack[i+1:] {
				closeStep(child, nil, rec.Stop)
			}
			r.stack = r.stack[:i]
			return
		}
	}
}

func closeStep(rec *StepRecord, err error, at time.Time) {
	if rec.Status != StatusRunning {
		return
	}
	rec.Stop = at
	rec.Status = StatusPassed
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	}
}

// Attach stores a copy of payload on the innermost open step, or on the case
// when no step is open.
func (r *Recorder) Attach(name string, kind Kind, payload []byte) {
	a := &Attachment{
		ID:   uuid.NewString(),
		Name: name,
		Kind: kind,
		Size: len(payload),
		Data: append([]byte(nil), payload...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.stack); n > 0 {
		r.stack[n-1].Attachments = append(r.stack[n-1].Attachments, a)
		return
	}
	r.result.Attachments = append(r.result.Attachments, a)
}

// Finish closes any open steps and seals the case. A nil err means passed.
// Calling Finish again returns the same result unchanged.
func (r *Recorder) Finish(err error) *CaseResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.result.Status != StatusRunning {
		return r.result
	}
	stop := r.now()
	for _, open := range r.stack {
		closeStep(open, nil, stop)
	}
	r.stack = nil

	r.result.Stop = stop
	r.result.Status = StatusPassed
	if err != nil {
		r.result.Status = StatusFailed
		r.result.Failure = err.Error()
	}
	return r.result
}

// Skip seals the case as skipped with the given reason.
func (r *Recorder) Skip(reason string) *CaseResult {
	res := r.Finish(nil)
	r.mu.Lock()
	defer r.mu.Unlock()
	res.Status = StatusSkipped
	res.Failure = reason
	return res
}

// Attachments returns every attachment recorded so far.
func (r *Recorder) Attachments() []*Attachment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result.AllAttachments()
}
