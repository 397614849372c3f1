package streamio

import (
	"bytes"
	"sync"
)

// WriterFunc adapts a function to io.Writer. Used to feed stream data into
// callbacks, e.g. publishing log text as events.
type WriterFunc func(string)

func (f WriterFunc) Write(p []byte) (int, error) {
	f(string(p))
	return len(p), nil
}

// LineWriter buffers stream data and invokes fn once per complete line,
// without the trailing newline. Flush emits any unterminated remainder.
type LineWriter struct {
	mu  sync.Mutex
	fn  func(string)
	buf bytes.Buffer
}

func NewLineWriter(fn func(string)) *LineWriter {
	return &LineWriter{fn: fn}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// no complete line yet, keep the remainder buffered
			w.buf.WriteString(line)
			break
		}
		w.fn(line[:len(line)-1])
	}
	return len(p), nil
}

func (w *LineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.fn(w.buf.String())
		w.buf.Reset()
	}
	return nil
}
