// Package observe provides a typed observable value cell with change
// notification, independent of any UI toolkit's event system.
package observe

import "sync"

// Value holds a single value of type T and notifies subscribers when it
// changes. Notifications fire only on actual change, in subscription order,
// synchronously on the goroutine calling Set.
type Value[T comparable] struct {
	mu   sync.Mutex
	v    T
	subs map[int]func(T)
	next int
}

func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (c *Value[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Set stores v and notifies subscribers if the value changed.
func (c *Value[T]) Set(v T) {
	c.mu.Lock()
	if c.v == v {
		c.mu.Unlock()
		return
	}
	c.v = v
	callbacks := c.snapshot()
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(v)
	}
}

// Subscribe registers a callback invoked on every change. It returns an
// unsubscribe function. The callback is not invoked with the current value.
func (c *Value[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// snapshot copies callbacks in subscription order. Caller must hold mu.
func (c *Value[T]) snapshot() []func(T) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	// ids are allocated sequentially, insertion sort keeps order stable
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	callbacks := make([]func(T), 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, c.subs[id])
	}
	return callbacks
}
