package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/itaxotools/moldrun/internal/report"
)

// channelSet bundles the unidirectional channels connecting supervisor and
// worker process: command in, result out, progress out, stdout out, stderr
// out, plus the process exit signal. It is owned exclusively by the
// supervisor goroutine; each pipe is fanned into a Go channel by a reader
// goroutine that closes the channel at EOF.
//
// The exit channel fires only after every reader has drained its pipe, so a
// terminal report buffered in results is always observable before the exit
// status: the tie-break between a completed task and a concurrent teardown
// resolves in favor of the result.
type channelSet struct {
	session string // correlates one worker process lifetime in logs
	proc    *exec.Cmd

	commands *report.CommandWriter
	cmdPipe  *os.File // write end; closing it tells the worker to exit 0

	results  chan report.Report
	progress chan report.Progress
	stdout   chan []byte
	stderr   chan []byte
	exit     chan int
}

// spawnWorker starts a worker process and wires its five channels.
// Construction failures here are the one error class the supervisor is
// allowed to surface directly.
func spawnWorker(argv []string) (*channelSet, error) {
	cmdR, cmdW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating command pipe: %w", err)
	}
	resR, resW, err := os.Pipe()
	if err != nil {
		cmdR.Close()
		cmdW.Close()
		return nil, fmt.Errorf("creating result pipe: %w", err)
	}
	progR, progW, err := os.Pipe()
	if err != nil {
		cmdR.Close()
		cmdW.Close()
		resR.Close()
		resW.Close()
		return nil, fmt.Errorf("creating progress pipe: %w", err)
	}

	proc := newWorkerCommand(argv)
	proc.Stdin = cmdR
	// ExtraFiles[0] and [1] become fds 3 and 4 in the child
	proc.ExtraFiles = []*os.File{resW, progW}

	stdoutPipe, err := proc.StdoutPipe()
	if err != nil {
		closeAll(cmdR, cmdW, resR, resW, progR, progW)
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := proc.StderrPipe()
	if err != nil {
		closeAll(cmdR, cmdW, resR, resW, progR, progW)
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		closeAll(cmdR, cmdW, resR, resW, progR, progW)
		return nil, fmt.Errorf("starting worker process: %w", err)
	}

	// The child inherited its ends; release ours so EOF propagates both ways.
	cmdR.Close()
	resW.Close()
	progW.Close()

	cs := &channelSet{
		session:  uuid.NewString(),
		proc:     proc,
		commands: report.NewCommandWriter(cmdW),
		cmdPipe:  cmdW,
		results:  make(chan report.Report, 8),
		progress: make(chan report.Progress, 256),
		stdout:   make(chan []byte, 64),
		stderr:   make(chan []byte, 64),
		exit:     make(chan int, 1),
	}

	var readers errgroup.Group
	readers.Go(func() error {
		defer close(cs.results)
		defer resR.Close()
		dec := report.NewResultReader(resR)
		for {
			rep, err := dec.Read()
			if err != nil {
				return nil // EOF or a torn frame from a killed worker
			}
			cs.results <- rep
		}
	})
	readers.Go(func() error {
		defer close(cs.progress)
		defer progR.Close()
		dec := report.NewProgressReader(progR)
		for {
			p, err := dec.Read()
			if err != nil {
				return nil
			}
			cs.progress <- p
		}
	})
	readers.Go(func() error {
		defer close(cs.stdout)
		copyChunks(cs.stdout, stdoutPipe)
		return nil
	})
	readers.Go(func() error {
		defer close(cs.stderr)
		copyChunks(cs.stderr, stderrPipe)
		return nil
	})

	// Reap only after the pipes are fully drained, so buffered output is
	// never lost and the exit signal orders after any terminal report.
	go func() {
		defer close(cs.exit)
		readers.Wait() //nolint:errcheck // readers never return errors
		cs.exit <- exitStatus(proc.Wait())
	}()

	return cs, nil
}

// send dispatches a Command to the worker over the command channel.
func (cs *channelSet) send(cmd report.Command) error {
	return cs.commands.Write(cmd)
}

// shutdown closes the command channel, telling the worker to exit cleanly
// once it finishes what it has.
func (cs *channelSet) shutdown() {
	cs.cmdPipe.Close()
}

// kill hard-terminates the worker's process group.
func (cs *channelSet) kill() {
	killProcessGroup(cs.proc) //nolint:errcheck // already-dead process is fine
}

// copyChunks pumps r into ch in bounded chunks until EOF.
func copyChunks(ch chan<- []byte, r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			ch <- chunk
		}
		if err != nil {
			return
		}
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}
