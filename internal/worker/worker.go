// Package worker implements the child-process side of the supervision
// protocol: receive one Command at a time, execute its runner, report the
// outcome. It runs inside a re-exec of the moldrun binary.
package worker

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"github.com/itaxotools/moldrun/internal/report"
	"github.com/itaxotools/moldrun/internal/task"
)

// File descriptors handed to the child by the supervisor, beyond stdio.
const (
	ResultFD   = 3
	ProgressFD = 4
)

// Loop reads Commands from in until EOF, executes each through the registry,
// and writes a Done or Fail report for every Command received. Runner errors
// and panics are always converted to Fail reports, never propagated; only a
// broken pipe set ends the loop with an error.
//
// Progress reports emitted by runners are forwarded on the progress pipe
// immediately, not buffered until completion.
func Loop(reg *task.Registry, in io.Reader, resultPipe, progressPipe io.Writer, stdout, stderr io.Writer) error {
	commands := report.NewCommandReader(in)
	results := report.NewResultWriter(resultPipe)
	progress := report.NewProgressWriter(progressPipe)

	// runners may emit progress from multiple goroutines
	var progressMu sync.Mutex
	sendProgress := func(p report.Progress) {
		progressMu.Lock()
		defer progressMu.Unlock()
		progress.Write(p) //nolint:errcheck // advisory stream, drop on error
	}

	for {
		cmd, err := commands.Read()
		if err == io.EOF {
			return nil // supervisor closed the command pipe: clean shutdown
		}
		if err != nil {
			return fmt.Errorf("worker loop: %w", err)
		}

		rc := task.NewRunContext(stdout, stderr, sendProgress)
		rep := execute(reg, rc, cmd)
		if err := results.Write(rep); err != nil {
			return fmt.Errorf("worker loop: %w", err)
		}
	}
}

// execute runs a single Command and produces its terminal report. The report
// always echoes the Command's ID unmodified.
func execute(reg *task.Registry, rc *task.RunContext, cmd report.Command) (rep report.Report) {
	defer func() {
		if r := recover(); r != nil {
			rep = report.Fail{
				ID:        cmd.ID,
				Message:   fmt.Sprintf("panic: %v", r),
				Traceback: string(debug.Stack()),
			}
		}
	}()

	runner, ok := reg.Lookup(cmd.Task)
	if !ok {
		return report.Fail{
			ID:        cmd.ID,
			Message:   fmt.Sprintf("unknown task %q", cmd.Task),
			Traceback: string(debug.Stack()),
		}
	}

	result, err := runner(rc, cmd.Args)
	if err != nil {
		return report.Fail{
			ID:        cmd.ID,
			Message:   err.Error(),
			Traceback: string(debug.Stack()),
		}
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return report.Fail{
			ID:        cmd.ID,
			Message:   fmt.Sprintf("encoding result: %v", err),
			Traceback: string(debug.Stack()),
		}
	}
	return report.Done{ID: cmd.ID, Result: encoded}
}

// Main is the entry point of the hidden worker subcommand. It wires the
// inherited file descriptors to the loop and uses the default registry.
// Stdout and stderr are the pipes the supervisor attached at spawn, so plain
// prints from runners stream back automatically.
func Main() error {
	resultPipe := os.NewFile(ResultFD, "results")
	if resultPipe == nil {
		return fmt.Errorf("worker: result pipe (fd %d) not inherited", ResultFD)
	}
	defer resultPipe.Close()

	progressPipe := os.NewFile(ProgressFD, "progress")
	if progressPipe == nil {
		return fmt.Errorf("worker: progress pipe (fd %d) not inherited", ProgressFD)
	}
	defer progressPipe.Close()

	return Loop(task.Default, os.Stdin, resultPipe, progressPipe, os.Stdout, os.Stderr)
}
