// internal/reporting/sink.go
package reporting

// Kind is the MIME type of an attachment payload.
type Kind string

const (
	KindPNG  Kind = "image/png"
	KindText Kind = "text/plain"
)

// Extension returns the file extension used when the payload is written to disk.
func (k Kind) Extension() string {
	switch k {
	case KindPNG:
		return ".png"
	case KindText:
		return ".txt"
	default:
		return ".bin"
	}
}

// Step is an open report step. End closes it; a non-nil error marks it failed.
type Step interface {
	End(err error)
}

// Sink receives step markers and attachments while a test case runs.
// Implementations must tolerate calls from a single goroutine at a time;
// Recorder additionally tolerates concurrent use.
type Sink interface {
	StartStep(title string) Step
	Attach(name string, kind Kind, payload []byte)
}

// NopSink discards everything.
type NopSink struct{}

type nopStep struct{}

func (nopStep) End(error) {}

func (NopSink) StartStep(string) Step { return nopStep{} }
func (NopSink) Attach(string, Kind, []byte) {}
