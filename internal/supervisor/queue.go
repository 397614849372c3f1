package supervisor

import (
	"sync"

	"github.com/itaxotools/moldrun/internal/report"
)

// Queue is the thread-safe FIFO feeding the supervisor goroutine. Put never
// blocks the caller (bounded only by memory); Get blocks until an item or
// the shutdown sentinel is available. FIFO order is the only ordering
// guarantee.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []*report.Command
	sentinel bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends a command. A nil command is the shutdown sentinel: Get keeps
// returning queued commands submitted before it, then reports shutdown.
func (q *Queue) Put(cmd *report.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cmd == nil {
		q.sentinel = true
	} else if !q.sentinel {
		q.items = append(q.items, cmd)
	}
	q.cond.Broadcast()
}

// Get blocks until a command is available and returns it with ok=true, or
// returns ok=false once the sentinel is reached with no commands left.
func (q *Queue) Get() (*report.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.sentinel {
		q.cond.Wait()
	}
	if len(q.items) > 0 {
		cmd := q.items[0]
		q.items = q.items[1:]
		return cmd, true
	}
	return nil, false
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
