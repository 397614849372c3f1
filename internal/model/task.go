// Package model exposes analysis tasks as observable state machines over
// the worker supervisor. A Task tracks four flags (ready, busy, done,
// editable), classifies terminal reports into notifications, and republishes
// worker output on the event bus.
package model

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/itaxotools/moldrun/internal/events"
	"github.com/itaxotools/moldrun/internal/observe"
	"github.com/itaxotools/moldrun/internal/report"
	"github.com/itaxotools/moldrun/internal/streamio"
	"github.com/itaxotools/moldrun/internal/supervisor"
	"github.com/itaxotools/moldrun/internal/task"
)

// defaultNamer numbers unnamed tasks per type across the process.
var defaultNamer = task.NewNamer()

// TaskConfig configures a Task facade.
type TaskConfig struct {
	// Type is the human-readable task type, used for default names.
	Type string
	// Name overrides the generated "<Type> #N" name.
	Name string
	// Bus receives notification, progress and log events. Required.
	Bus *events.Bus
	// Eager keeps a warm worker process between runs.
	Eager bool
	// WorkerArgv overrides the worker command line, for tests.
	WorkerArgv []string

	Logger *zap.SugaredLogger
}

// Task wraps a supervisor with observable state. All flag transitions
// happen on the supervisor goroutine except Start and Stop, which are
// called by the consumer.
type Task struct {
	name string

	Ready    *observe.Value[bool]
	Busy     *observe.Value[bool]
	Done     *observe.Value[bool]
	Editable *observe.Value[bool]

	// IsReady decides whether a run may start. RefreshReady re-evaluates
	// it into the Ready flag.
	IsReady func() bool

	// FailureText replaces the raw error message in failure notifications
	// when set. The raw message still travels in the detail field.
	FailureText string

	// OnDone is called with the terminal Done report after the default
	// handling, on the supervisor goroutine.
	OnDone func(report.Done)
	// OnStopped is called after any terminal report, with the outcome kind.
	OnStopped func(rep report.Report)

	bus *events.Bus
	sup *supervisor.Supervisor
	log *zap.SugaredLogger

	mu        sync.Mutex
	currentID string
}

// NewTask creates the facade and its supervisor. With cfg.Eager the worker
// process spawns before NewTask returns.
func NewTask(cfg TaskConfig) (*Task, error) {
	if cfg.Type == "" {
		cfg.Type = "Task"
	}
	name := cfg.Name
	if name == "" {
		name = defaultNamer.Next(cfg.Type)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	t := &Task{
		name:     name,
		Ready:    observe.NewValue(false),
		Busy:     observe.NewValue(false),
		Done:     observe.NewValue(false),
		Editable: observe.NewValue(true),
		bus:      cfg.Bus,
		log:      log.With("task", name),
	}
	t.Busy.Subscribe(func(bool) { t.checkEditable() })
	t.Done.Subscribe(func(bool) { t.checkEditable() })

	sup, err := supervisor.New(supervisor.Config{
		Name:       name,
		Eager:      cfg.Eager,
		WorkerArgv: cfg.WorkerArgv,
		OnReport:   t.handleReport,
		OnProgress: t.handleProgress,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating worker for %s: %w", name, err)
	}
	t.sup = sup

	logSink := streamio.NewLineWriter(func(line string) {
		t.publish(events.LogLineEvent{Task: t.name, Line: line, Timestamp: time.Now()})
	})
	sup.StreamOut().Add(logSink)
	sup.StreamErr().Add(logSink)

	return t, nil
}

// Name returns the task's display name.
func (t *Task) Name() string { return t.name }

// StreamOut returns the worker stdout multiplexer, for extra sinks.
func (t *Task) StreamOut() *streamio.Multiplexer { return t.sup.StreamOut() }

// StreamErr returns the worker stderr multiplexer.
func (t *Task) StreamErr() *streamio.Multiplexer { return t.sup.StreamErr() }

// RefreshReady re-evaluates the IsReady predicate into the Ready flag.
func (t *Task) RefreshReady() {
	if t.IsReady != nil {
		t.Ready.Set(t.IsReady())
	}
}

// Exec dispatches one run to the worker. The runID is echoed back in the
// task's terminal report. A task runs one command at a time; Exec rejects
// while the previous run is still in flight.
func (t *Task) Exec(runID, taskName string, args any) error {
	if t.Busy.Get() {
		return fmt.Errorf("%s is already running", t.name)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding arguments for %s: %w", taskName, err)
	}

	t.mu.Lock()
	t.currentID = runID
	t.mu.Unlock()

	t.Busy.Set(true)
	t.publish(events.RunStartedEvent{Task: t.name, RunID: runID, Timestamp: time.Now()})
	t.sup.Exec(report.Command{ID: runID, Task: taskName, Args: raw})
	return nil
}

// Stop cancels the run in flight. The Reset report that follows clears the
// busy flag and raises the cancellation notification.
func (t *Task) Stop() {
	t.sup.Reset()
}

// Quit tears down the worker process. The task cannot be used afterwards.
func (t *Task) Quit() {
	t.sup.Quit()
}

// ClearLogs tells consumers to discard accumulated log text.
func (t *Task) ClearLogs() {
	t.publish(events.LogClearedEvent{Task: t.name, Timestamp: time.Now()})
}

func (t *Task) handleReport(rep report.Report) {
	switch r := rep.(type) {
	case report.Done:
		t.notify(events.SeverityInfo, fmt.Sprintf("%s completed successfully!", t.name), "")
		t.Busy.Set(false)
		t.Done.Set(true)
		if t.OnDone != nil {
			t.OnDone(r)
		}

	case report.Fail:
		t.log.Errorw("task failed", "id", r.ID, "message", r.Message)
		text := t.FailureText
		if text == "" {
			text = r.Message
		}
		detail := r.Traceback
		if t.FailureText != "" && r.Message != "" {
			detail = r.Message + "\n" + r.Traceback
		}
		t.notify(events.SeverityError, text, detail)
		t.Busy.Set(false)

	case report.Exit:
		// Code zero is a benign teardown, not an outcome worth reporting.
		if r.Code != 0 {
			t.log.Errorw("worker process crashed", "id", r.ID, "code", r.Code)
			text := t.FailureText
			detail := fmt.Sprintf("Process failed with exit code: %d", r.Code)
			if text == "" {
				text = detail
				detail = ""
			}
			t.notify(events.SeverityError, text, detail)
		}
		t.Busy.Set(false)

	case report.Reset:
		t.notify(events.SeverityWarn, "Cancelled by user.", "")
		t.Busy.Set(false)
	}

	if t.OnStopped != nil {
		t.OnStopped(rep)
	}
}

func (t *Task) handleProgress(p report.Progress) {
	t.publish(events.ProgressEvent{
		Task:      t.name,
		Text:      p.Text,
		Value:     p.Value,
		Maximum:   p.Maximum,
		Timestamp: time.Now(),
	})
}

func (t *Task) notify(severity events.Severity, text, detail string) {
	t.publish(events.NotificationEvent{
		Task:      t.name,
		Severity:  severity,
		Text:      text,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

func (t *Task) publish(event events.Event) {
	if t.bus != nil {
		t.bus.Publish(event)
	}
}

func (t *Task) checkEditable() {
	t.Editable.Set(!t.Busy.Get() && !t.Done.Get())
}

// CurrentRunID returns the id of the most recently dispatched run.
func (t *Task) CurrentRunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentID
}
