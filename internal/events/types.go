package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Topic() string
	TaskName() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicLog  = "log"
)

// Event type constants
const (
	EventTypeNotification = "task.notification"
	EventTypeProgress     = "task.progress"
	EventTypeRunStarted   = "task.started"
	EventTypeLogLine      = "log.line"
	EventTypeLogCleared   = "log.cleared"
)

// Severity classifies notifications for the consumer: information on
// success, warning on user cancellation, error on failure or crash.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// NotificationEvent carries a user-facing completion notification.
type NotificationEvent struct {
	Task      string
	Severity  Severity
	Text      string
	Detail    string // traceback or exit detail, may be empty
	Timestamp time.Time
}

func (e NotificationEvent) EventType() string { return EventTypeNotification }
func (e NotificationEvent) Topic() string     { return TopicTask }
func (e NotificationEvent) TaskName() string  { return e.Task }

// ProgressEvent mirrors a worker progress report.
type ProgressEvent struct {
	Task      string
	Text      string
	Value     int
	Maximum   int
	Timestamp time.Time
}

func (e ProgressEvent) EventType() string { return EventTypeProgress }
func (e ProgressEvent) Topic() string     { return TopicTask }
func (e ProgressEvent) TaskName() string  { return e.Task }

// RunStartedEvent is published when a task run is dispatched.
type RunStartedEvent struct {
	Task      string
	RunID     string
	Timestamp time.Time
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) Topic() string     { return TopicTask }
func (e RunStartedEvent) TaskName() string  { return e.Task }

// LogLineEvent carries one line of interleaved worker stdout/stderr.
type LogLineEvent struct {
	Task      string
	Line      string
	Timestamp time.Time
}

func (e LogLineEvent) EventType() string { return EventTypeLogLine }
func (e LogLineEvent) Topic() string     { return TopicLog }
func (e LogLineEvent) TaskName() string  { return e.Task }

// LogClearedEvent tells consumers to discard accumulated log text.
type LogClearedEvent struct {
	Task      string
	Timestamp time.Time
}

func (e LogClearedEvent) EventType() string { return EventTypeLogCleared }
func (e LogClearedEvent) Topic() string     { return TopicLog }
func (e LogClearedEvent) TaskName() string  { return e.Task }
