// Package streamio provides the fan-out writer used to distribute worker
// output to multiple destinations, plus small writer adapters.
package streamio

import (
	"io"
	"os"
	"sync"
)

// flusher is implemented by sinks that buffer writes.
type flusher interface {
	Flush() error
}

// Multiplexer fans a single text stream out to a dynamic set of sinks.
// Writes are delivered to sinks in registration order. All methods are safe
// for concurrent use.
type Multiplexer struct {
	mu    sync.Mutex
	sinks []io.Writer
}

// NewMultiplexer creates a Multiplexer over the given sinks. Nil sinks are
// ignored; standard streams may be nil in some deployment contexts.
func NewMultiplexer(sinks ...io.Writer) *Multiplexer {
	m := &Multiplexer{}
	for _, sink := range sinks {
		m.Add(sink)
	}
	return m
}

// Add registers a sink. A nil sink is silently ignored.
func (m *Multiplexer) Add(sink io.Writer) {
	if sink == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

// Remove detaches a sink. Subsequent writes no longer reach it. Removing a
// sink that was never registered is a no-op.
func (m *Multiplexer) Remove(sink io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sinks {
		if s == sink {
			m.sinks = append(m.sinks[:i], m.sinks[i+1:]...)
			return
		}
	}
}

// Write forwards p to every registered sink. A failing sink does not stop
// delivery to the remaining sinks; the write is reported as the full length
// regardless, since partial fan-out cannot be expressed through io.Writer.
func (m *Multiplexer) Write(p []byte) (int, error) {
	m.mu.Lock()
	sinks := make([]io.Writer, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.Unlock()

	for _, sink := range sinks {
		sink.Write(p) //nolint:errcheck // keep delivering to remaining sinks
	}
	return len(p), nil
}

// WriteString forwards a string to every registered sink.
func (m *Multiplexer) WriteString(s string) (int, error) {
	return m.Write([]byte(s))
}

// Flush flushes every sink that supports it.
func (m *Multiplexer) Flush() {
	m.mu.Lock()
	sinks := make([]io.Writer, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.Unlock()

	for _, sink := range sinks {
		if f, ok := sink.(flusher); ok {
			f.Flush() //nolint:errcheck
		}
	}
}

// Close flushes all sinks and closes those that support it, except the
// process-global standard streams, which other parts of the process still
// need. The multiplexer keeps no sinks afterwards.
func (m *Multiplexer) Close() {
	m.Flush()

	m.mu.Lock()
	sinks := m.sinks
	m.sinks = nil
	m.mu.Unlock()

	for _, sink := range sinks {
		if sink == os.Stdout || sink == os.Stderr {
			continue
		}
		if c, ok := sink.(io.Closer); ok {
			c.Close() //nolint:errcheck
		}
	}
}
