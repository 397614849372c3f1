package report

import "encoding/json"

// Kind identifies the report variant.
type Kind string

const (
	KindDone     Kind = "done"
	KindFail     Kind = "fail"
	KindExit     Kind = "exit"
	KindReset    Kind = "reset"
	KindProgress Kind = "progress"
)

// Command is a unit of work sent to the worker process. The callable crosses
// the process boundary by name: both sides run the same binary, and the task
// registry resolves Task to a runner function in the child.
//
// ID is an opaque correlation token. It is created once, preserved unmodified
// through the full round trip, and echoed back in the terminal report.
type Command struct {
	ID   string          `json:"id"`
	Task string          `json:"task"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Report is a message describing task outcome or status. Done, Fail, Exit and
// Reset are terminal: exactly one of them concludes each dispatched Command.
type Report interface {
	Kind() Kind
	CommandID() string
}

// Done reports that the task runner returned normally. Result holds the
// JSON-encoded return value, exactly as produced by the runner.
type Done struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
}

func (r Done) Kind() Kind        { return KindDone }
func (r Done) CommandID() string { return r.ID }

// Fail reports that the task runner returned an error or panicked. The
// original error cannot cross the process boundary as a live value, so it is
// captured as a message plus a stack trace string. The receiving side must
// not attempt to reconstruct a typed error from it.
type Fail struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Traceback string `json:"traceback"`
}

func (r Fail) Kind() Kind        { return KindFail }
func (r Fail) CommandID() string { return r.ID }

// Exit reports that the worker process terminated without producing a Done or
// Fail report. A nonzero Code is abnormal; Code zero is a benign teardown and
// must not surface as a user-visible error.
type Exit struct {
	ID   string `json:"id"`
	Code int    `json:"code"`
}

func (r Exit) Kind() Kind        { return KindExit }
func (r Exit) CommandID() string { return r.ID }

// Reset reports that the supervisor intentionally terminated the worker in
// response to a cancellation request. It is never a failure.
type Reset struct {
	ID string `json:"id"`
}

func (r Reset) Kind() Kind        { return KindReset }
func (r Reset) CommandID() string { return r.ID }

// Progress is an advisory status signal emitted by a running task. Progress
// messages preserve order among themselves, but carry no ordering guarantee
// relative to stdout or stderr data.
type Progress struct {
	Text    string `json:"text"`
	Value   int    `json:"value"`
	Maximum int    `json:"maximum"`
}

func (r Progress) Kind() Kind        { return KindProgress }
func (r Progress) CommandID() string { return "" }
