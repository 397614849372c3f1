// Package supervisor runs tasks on an isolated worker process and reports
// their outcomes. It owns the worker's lifecycle: spawning, the multiplexed
// wait over its channels, hard cancellation, and eager respawn so a warm
// process is ready for the next task.
package supervisor

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/itaxotools/moldrun/internal/report"
	"github.com/itaxotools/moldrun/internal/streamio"
)

// retireGrace bounds how long a worker may take to exit after its command
// channel closes before it is killed outright.
const retireGrace = 5 * time.Second

// Config configures a Supervisor.
type Config struct {
	// Name identifies the worker in logs and the spawn breaker.
	Name string

	// Eager keeps a warm worker process ready between tasks. When false the
	// worker is spawned lazily when the next task is dequeued.
	Eager bool

	// WorkerArgv is the command line spawned as the worker child. Empty
	// means re-exec the current binary with the hidden worker subcommand.
	WorkerArgv []string

	// OnReport receives exactly one terminal report (Done, Fail, Exit or
	// Reset) per dispatched Command. Called on the supervisor goroutine and
	// must not block.
	OnReport func(report.Report)

	// OnProgress receives progress reports as they arrive. Must not block.
	OnProgress func(report.Progress)

	// StdoutSink and StderrSink are the initial stream sinks. Nil selects
	// the process standard streams; pass io.Discard to start with none.
	StdoutSink io.Writer
	StderrSink io.Writer

	// Retry tunes the respawn backoff after abnormal worker exits. Zero
	// value means DefaultRetryConfig.
	Retry RetryConfig

	Logger *zap.SugaredLogger
}

// Supervisor owns one worker process and its channel set. Exactly one task
// is in flight at any time; queued tasks wait for the current task's
// terminal report. All channel and process handles are confined to the
// supervisor goroutine; Reset and Quit are the only cross-thread entry
// points besides Exec.
type Supervisor struct {
	name       string
	eager      bool
	argv       []string
	onReport   func(report.Report)
	onProgress func(report.Progress)
	log        *zap.SugaredLogger

	streamOut *streamio.Multiplexer
	streamErr *streamio.Multiplexer

	queue   *Queue
	breaker *gobreaker.CircuitBreaker
	backoff *backoff.ExponentialBackOff

	mu        sync.Mutex
	cs        *channelSet
	running   bool
	resetting bool
	quitting  bool

	// delayRespawn is set after an abnormal exit so the next respawn is
	// paced by the backoff. Touched only on the supervisor goroutine.
	delayRespawn bool

	quitCh   chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// New creates a Supervisor and starts its control goroutine. With Eager set,
// the first worker process is spawned before New returns; a spawn failure
// there is fatal and propagates.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Name == "" {
		cfg.Name = "worker"
	}
	argv := cfg.WorkerArgv
	if len(argv) == 0 {
		var err error
		argv, err = SelfWorkerArgv()
		if err != nil {
			return nil, err
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	retry := cfg.Retry
	if retry == (RetryConfig{}) {
		retry = DefaultRetryConfig()
	}
	stdoutSink := cfg.StdoutSink
	if stdoutSink == nil {
		stdoutSink = os.Stdout
	}
	stderrSink := cfg.StderrSink
	if stderrSink == nil {
		stderrSink = os.Stderr
	}

	s := &Supervisor{
		name:       cfg.Name,
		eager:      cfg.Eager,
		argv:       argv,
		onReport:   cfg.OnReport,
		onProgress: cfg.OnProgress,
		log:        log.With("worker", cfg.Name),
		streamOut:  streamio.NewMultiplexer(stdoutSink),
		streamErr:  streamio.NewMultiplexer(stderrSink),
		queue:      NewQueue(),
		breaker:    newSpawnBreaker(cfg.Name, log),
		backoff:    retry.newBackOff(),
		quitCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}

	if s.eager {
		cs, err := s.spawn()
		if err != nil {
			return nil, fmt.Errorf("eager spawn: %w", err)
		}
		s.setChannelSet(cs)
	}

	go s.serve()
	return s, nil
}

// StreamOut returns the multiplexer carrying the worker's stdout.
func (s *Supervisor) StreamOut() *streamio.Multiplexer { return s.streamOut }

// StreamErr returns the multiplexer carrying the worker's stderr.
func (s *Supervisor) StreamErr() *streamio.Multiplexer { return s.streamErr }

// Exec queues a Command for execution on the worker process. It never
// blocks; tasks submitted while one is executing simply wait.
func (s *Supervisor) Exec(cmd report.Command) {
	s.mu.Lock()
	quitting := s.quitting
	s.mu.Unlock()
	if quitting {
		s.log.Warnw("command dropped, supervisor is quitting", "id", cmd.ID)
		return
	}
	s.queue.Put(&cmd)
}

// Reset interrupts the task currently in flight by hard-killing the worker
// process. It returns immediately; a Reset report follows asynchronously
// once the OS confirms termination. A no-op when nothing is running.
func (s *Supervisor) Reset() {
	s.mu.Lock()
	cs := s.cs
	if cs == nil || !s.running {
		s.mu.Unlock()
		return
	}
	s.resetting = true
	s.mu.Unlock()

	s.streamOut.Flush()
	s.streamErr.Flush()
	cs.kill()
}

// Quit resets any in-flight task, stops the control goroutine, and tears
// down the worker process and all channels before returning. Idempotent.
func (s *Supervisor) Quit() {
	s.quitOnce.Do(func() {
		s.mu.Lock()
		s.quitting = true
		s.mu.Unlock()
		close(s.quitCh)
		s.Reset()
		s.queue.Put(nil)
	})
	<-s.done
}

// serve is the supervisor goroutine: dequeue, dispatch, wait, report.
func (s *Supervisor) serve() {
	defer close(s.done)
	defer s.closeStreams()
	defer s.teardownIdle()

	for {
		cmd, ok := s.queue.Get()
		if !ok || s.isQuitting() {
			return
		}
		s.deliver(s.runTask(cmd))
		s.maybeRespawn()
	}
}

// runTask executes one Command through a full worker cycle and returns its
// terminal report.
func (s *Supervisor) runTask(cmd *report.Command) report.Report {
	cs, err := s.ensureWorker()
	if err != nil {
		s.log.Errorw("cannot obtain worker process", "id", cmd.ID, "err", err)
		return report.Fail{
			ID:        cmd.ID,
			Message:   fmt.Sprintf("spawning worker process: %v", err),
			Traceback: err.Error(),
		}
	}

	if err := cs.send(*cmd); err != nil {
		// The worker died between spawn and dispatch; the wait below will
		// observe the exit and classify it.
		s.log.Warnw("command dispatch failed", "id", cmd.ID, "err", err)
	}

	s.setRunning(true)
	rep := s.waitTask(cmd, cs)
	s.setRunning(false)
	return rep
}

// waitTask is the readiness-multiplexing wait of one task cycle: it forwards
// progress and stream data as they arrive and returns the task's terminal
// report.
func (s *Supervisor) waitTask(cmd *report.Command, cs *channelSet) report.Report {
	results, progress, stdout, stderr := cs.results, cs.progress, cs.stdout, cs.stderr
	for {
		select {
		case r, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			// Authoritative completion: the result wins over any concurrent
			// teardown of the channel set.
			s.retire(cs)
			s.takeResetting() // a kill may have raced the result
			s.backoff.Reset()
			return r

		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			s.emitProgress(p)

		case b, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			s.streamOut.Write(b) //nolint:errcheck

		case b, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			s.streamErr.Write(b) //nolint:errcheck

		case code := <-cs.exit:
			return s.handleExit(cmd, cs, code)
		}
	}
}

// handleExit interprets a worker exit observed before (or without) a result.
// Every pipe is at EOF once the exit signal fires, so anything buffered is
// flushed first, and a terminal report found there takes precedence over
// the exit status.
func (s *Supervisor) handleExit(cmd *report.Command, cs *channelSet, code int) report.Report {
	rep := s.flushBuffered(cs)
	s.setChannelSet(nil)
	resetting := s.takeResetting()

	switch {
	case rep != nil:
		s.backoff.Reset()
	case resetting:
		rep = report.Reset{ID: cmd.ID}
	default:
		rep = report.Exit{ID: cmd.ID, Code: code}
		if code != 0 {
			s.log.Warnw("worker exited abnormally", "id", cmd.ID, "code", code, "session", cs.session)
			s.delayRespawn = true
		}
	}
	return rep
}

// retire tears down a channel set whose worker completed normally: close the
// command channel so the worker exits 0, keep forwarding whatever stream
// data is still in flight, and reap the process. A worker that lingers past
// the grace period is killed.
func (s *Supervisor) retire(cs *channelSet) {
	s.setChannelSet(nil)
	cs.shutdown()

	timer := time.NewTimer(retireGrace)
	defer timer.Stop()

	results, progress, stdout, stderr := cs.results, cs.progress, cs.stdout, cs.stderr
	for {
		select {
		case _, ok := <-results:
			// a conforming worker sends nothing further; discard strays
			if !ok {
				results = nil
			}
		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			s.emitProgress(p)
		case b, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			s.streamOut.Write(b) //nolint:errcheck
		case b, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			s.streamErr.Write(b) //nolint:errcheck
		case <-timer.C:
			s.log.Warnw("worker did not exit after command channel close, killing", "session", cs.session)
			cs.kill()
		case <-cs.exit:
			s.flushBuffered(cs)
			return
		}
	}
}

// flushBuffered forwards everything still buffered in a finished channel
// set. All channels are closed by the time the exit signal has fired, so
// the ranges terminate. Returns the first terminal report found, if any.
func (s *Supervisor) flushBuffered(cs *channelSet) report.Report {
	var rep report.Report
	for r := range cs.results {
		if rep == nil {
			rep = r
		}
	}
	for p := range cs.progress {
		s.emitProgress(p)
	}
	for b := range cs.stdout {
		s.streamOut.Write(b) //nolint:errcheck
	}
	for b := range cs.stderr {
		s.streamErr.Write(b) //nolint:errcheck
	}
	return rep
}

// ensureWorker returns the live channel set, spawning a worker if needed.
func (s *Supervisor) ensureWorker() (*channelSet, error) {
	s.mu.Lock()
	cs := s.cs
	s.mu.Unlock()
	if cs != nil {
		return cs, nil
	}
	cs, err := s.spawn()
	if err != nil {
		return nil, err
	}
	s.setChannelSet(cs)
	return cs, nil
}

// spawn starts a worker process through the crash-loop breaker.
func (s *Supervisor) spawn() (*channelSet, error) {
	v, err := s.breaker.Execute(func() (any, error) {
		return spawnWorker(s.argv)
	})
	if err != nil {
		return nil, err
	}
	cs := v.(*channelSet)
	s.log.Debugw("worker process spawned", "session", cs.session, "pid", cs.proc.Process.Pid)
	return cs, nil
}

// maybeRespawn keeps a warm worker ready when configured eager. Runs after
// report delivery so a crash backoff never delays the caller's notification.
func (s *Supervisor) maybeRespawn() {
	if !s.eager || s.isQuitting() {
		return
	}
	s.mu.Lock()
	warm := s.cs != nil
	s.mu.Unlock()
	if warm {
		return
	}
	if s.delayRespawn {
		s.delayRespawn = false
		s.waitRespawnDelay()
		if s.isQuitting() {
			return
		}
	}
	cs, err := s.spawn()
	if err != nil {
		// next runTask will retry through ensureWorker
		s.log.Errorw("eager respawn failed", "err", err)
		return
	}
	s.setChannelSet(cs)
}

// waitRespawnDelay paces respawns after a crash; interrupted by Quit.
func (s *Supervisor) waitRespawnDelay() {
	delay := s.backoff.NextBackOff()
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.quitCh:
	}
}

// teardownIdle disposes of a warm worker left over when the loop stops.
func (s *Supervisor) teardownIdle() {
	s.mu.Lock()
	cs := s.cs
	s.cs = nil
	s.mu.Unlock()
	if cs == nil {
		return
	}
	cs.shutdown()
	cs.kill()
	<-cs.exit
	s.flushBuffered(cs)
}

// deliver reports a task's terminal outcome to the configured callback.
// Stream sinks are flushed first so log output precedes the notification.
func (s *Supervisor) deliver(rep report.Report) {
	s.streamOut.Flush()
	s.streamErr.Flush()
	if s.onReport != nil {
		s.onReport(rep)
	}
}

func (s *Supervisor) emitProgress(p report.Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func (s *Supervisor) closeStreams() {
	s.streamOut.Close()
	s.streamErr.Close()
}

func (s *Supervisor) setChannelSet(cs *channelSet) {
	s.mu.Lock()
	s.cs = cs
	s.mu.Unlock()
}

func (s *Supervisor) setRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
}

func (s *Supervisor) takeResetting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	resetting := s.resetting
	s.resetting = false
	return resetting
}

func (s *Supervisor) isQuitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quitting
}
