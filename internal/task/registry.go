// Package task holds the process-wide task registry and the naming service
// for default task display names.
//
// Runners are registered under stable names at init time. Because the worker
// child process is a re-exec of the same binary, parent and child share the
// same registry contents, which is what lets a Command carry its callable as
// a name instead of a serialized function.
package task

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Runner executes a unit of work inside the worker process. Args is the
// JSON-encoded argument payload of the Command; the returned value is
// JSON-encoded into the Done report. A returned error becomes a Fail report,
// never a process crash.
type Runner func(rc *RunContext, args json.RawMessage) (any, error)

// Registry maps task names to runner functions.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]Runner)}
}

// Register adds a runner under the given name. Registering the same name
// twice is a programming error.
func (r *Registry) Register(name string, fn Runner) error {
	if fn == nil {
		return fmt.Errorf("task %q: nil runner", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runners[name]; exists {
		return fmt.Errorf("task %q: already registered", name)
	}
	r.runners[name] = fn
	return nil
}

// MustRegister is Register for init-time use.
func (r *Registry) MustRegister(name string, fn Runner) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup resolves a task name to its runner.
func (r *Registry) Lookup(name string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.runners[name]
	return fn, ok
}

// Names returns the registered task names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.runners))
	for name := range r.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default is the registry shared by the parent process and the re-exec'd
// worker child.
var Default = NewRegistry()

// Register adds a runner to the default registry.
func Register(name string, fn Runner) error { return Default.Register(name, fn) }

// MustRegister adds a runner to the default registry, panicking on conflict.
func MustRegister(name string, fn Runner) { Default.MustRegister(name, fn) }
