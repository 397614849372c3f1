package streamio

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestMultiplexerFanout(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiplexer(&a)
	m.Add(&b)

	m.WriteString("hello ") //nolint:errcheck
	m.Remove(&b)
	m.WriteString("world") //nolint:errcheck

	if got := a.String(); got != "hello world" {
		t.Errorf("kept sink = %q, want %q", got, "hello world")
	}
	if got := b.String(); got != "hello " {
		t.Errorf("removed sink = %q, want %q", got, "hello ")
	}
}

func TestMultiplexerIgnoresNilSink(t *testing.T) {
	var a bytes.Buffer
	m := NewMultiplexer(&a)
	m.Add(nil)
	if _, err := m.WriteString("x"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if a.String() != "x" {
		t.Errorf("sink = %q, want %q", a.String(), "x")
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("sink broken") }

func TestMultiplexerContinuesPastFailingSink(t *testing.T) {
	var a bytes.Buffer
	m := NewMultiplexer(failingWriter{})
	m.Add(&a)

	m.WriteString("data") //nolint:errcheck

	if a.String() != "data" {
		t.Errorf("later sink = %q, want %q; a failing sink must not block the rest", a.String(), "data")
	}
}

func TestLineWriterEmitsCompleteLines(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	w.Write([]byte("one\ntwo\nthr")) //nolint:errcheck
	w.Write([]byte("ee\n"))          //nolint:errcheck

	want := []string{"one", "two", "three"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLineWriterFlushEmitsRemainder(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	w.Write([]byte("partial")) //nolint:errcheck
	if len(lines) != 0 {
		t.Fatalf("partial line emitted early: %v", lines)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(lines) != 1 || lines[0] != "partial" {
		t.Errorf("lines = %v, want [partial]", lines)
	}
}

func TestWriterFunc(t *testing.T) {
	var sb strings.Builder
	w := WriterFunc(func(s string) { sb.WriteString(s) })
	n, err := w.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("Write = (%d, %v), want (3, nil)", n, err)
	}
	if sb.String() != "abc" {
		t.Errorf("captured = %q, want %q", sb.String(), "abc")
	}
}
