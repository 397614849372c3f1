package report

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestCommandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewCommandWriter(&buf)
	r := NewCommandReader(&buf)

	sent := []Command{
		{ID: "a", Task: "mold.diagnose", Args: json.RawMessage(`{"x":1}`)},
		{ID: "b", Task: "noop"},
	}
	for _, cmd := range sent {
		if err := w.Write(cmd); err != nil {
			t.Fatalf("Write(%q): %v", cmd.ID, err)
		}
	}

	for _, want := range sent {
		got, err := r.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if got.ID != want.ID || got.Task != want.Task {
			t.Errorf("got %+v, want %+v", got, want)
		}
	}
	if _, err := r.Read(); err != io.EOF {
		t.Errorf("Read at end = %v, want io.EOF", err)
	}
}

func TestResultRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Report
	}{
		{"done", Done{ID: "r1", Result: json.RawMessage(`42`)}},
		{"fail", Fail{ID: "r2", Message: "bad input", Traceback: "stack"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewResultWriter(&buf).Write(tt.in); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := NewResultReader(&buf).Read()
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got.Kind() != tt.in.Kind() {
				t.Errorf("kind = %q, want %q", got.Kind(), tt.in.Kind())
			}
			if got.CommandID() != tt.in.CommandID() {
				t.Errorf("id = %q, want %q", got.CommandID(), tt.in.CommandID())
			}
		})
	}
}

func TestResultWriterRejectsSynthesizedKinds(t *testing.T) {
	var buf bytes.Buffer
	w := NewResultWriter(&buf)
	for _, rep := range []Report{Exit{ID: "x", Code: 1}, Reset{ID: "x"}} {
		if err := w.Write(rep); err == nil {
			t.Errorf("Write(%s) succeeded, want error", rep.Kind())
		}
	}
	if buf.Len() != 0 {
		t.Errorf("rejected frames still wrote %d bytes", buf.Len())
	}
}

func TestResultReaderRejectsUnknownKind(t *testing.T) {
	r := NewResultReader(strings.NewReader(`{"kind":"progress","id":"x"}` + "\n"))
	if _, err := r.Read(); err == nil {
		t.Error("Read of unknown kind succeeded, want error")
	}
}

func TestProgressPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewProgressWriter(&buf)
	for i := 1; i <= 5; i++ {
		if err := w.Write(Progress{Text: "step", Value: i, Maximum: 5}); err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
	}
	r := NewProgressReader(&buf)
	for i := 1; i <= 5; i++ {
		p, err := r.Read()
		if err != nil {
			t.Fatalf("Read(%d): %v", i, err)
		}
		if p.Value != i {
			t.Errorf("value = %d, want %d", p.Value, i)
		}
	}
}
