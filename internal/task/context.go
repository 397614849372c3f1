package task

import (
	"io"

	"github.com/itaxotools/moldrun/internal/report"
)

// RunContext is handed to a Runner by the worker loop. Stdout and Stderr are
// already wired onto the outbound pipes, so anything the runner prints shows
// up live on the supervisor side.
type RunContext struct {
	Stdout io.Writer
	Stderr io.Writer

	progress func(report.Progress)
}

// NewRunContext builds a RunContext. The progress callback may be nil, in
// which case progress calls are dropped.
func NewRunContext(stdout, stderr io.Writer, progress func(report.Progress)) *RunContext {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &RunContext{Stdout: stdout, Stderr: stderr, progress: progress}
}

// Progress forwards an advisory progress signal immediately. Safe to call
// from the runner at any point during execution.
func (rc *RunContext) Progress(text string, value, maximum int) {
	if rc.progress == nil {
		return
	}
	rc.progress(report.Progress{Text: text, Value: value, Maximum: maximum})
}
