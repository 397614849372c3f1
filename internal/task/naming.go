package task

import (
	"fmt"
	"sync"
)

// Namer allocates default display names per task type, with a monotonically
// increasing suffix: "MolD #1", "MolD #2", and so on. Counters are keyed by
// task type and safe for concurrent use.
type Namer struct {
	mu       sync.Mutex
	counters map[string]int
}

func NewNamer() *Namer {
	return &Namer{counters: make(map[string]int)}
}

// Next returns the next default name for the given task type.
func (n *Namer) Next(taskType string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counters[taskType]++
	return fmt.Sprintf("%s #%d", taskType, n.counters[taskType])
}

// Count returns how many names have been handed out for the given task type.
func (n *Namer) Count(taskType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counters[taskType]
}

// Reset clears the counter for one task type, or all counters if taskType is
// empty.
func (n *Namer) Reset(taskType string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if taskType == "" {
		n.counters = make(map[string]int)
		return
	}
	delete(n.counters, taskType)
}
