package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/itaxotools/moldrun/internal/report"
	"github.com/itaxotools/moldrun/internal/task"
)

func testRegistry(t *testing.T) *task.Registry {
	t.Helper()
	reg := task.NewRegistry()
	reg.MustRegister("echo", func(rc *task.RunContext, args json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(args, &s); err != nil {
			return nil, err
		}
		return s, nil
	})
	reg.MustRegister("count", func(rc *task.RunContext, args json.RawMessage) (any, error) {
		for i := 1; i <= 10; i++ {
			rc.Progress("step", i, 10)
		}
		return 42, nil
	})
	reg.MustRegister("fail", func(rc *task.RunContext, args json.RawMessage) (any, error) {
		return nil, errors.New("bad input")
	})
	reg.MustRegister("panic", func(rc *task.RunContext, args json.RawMessage) (any, error) {
		panic("boom")
	})
	reg.MustRegister("print", func(rc *task.RunContext, args json.RawMessage) (any, error) {
		io.WriteString(rc.Stdout, "output line\n")
		return nil, nil
	})
	return reg
}

// runLoop feeds commands through an in-memory loop cycle and returns the
// decoded results and progress reports.
func runLoop(t *testing.T, reg *task.Registry, cmds ...report.Command) ([]report.Report, []report.Progress, string) {
	t.Helper()

	var in, resultBuf, progressBuf, stdout bytes.Buffer
	enc := report.NewCommandWriter(&in)
	for _, cmd := range cmds {
		if err := enc.Write(cmd); err != nil {
			t.Fatalf("encoding command: %v", err)
		}
	}

	if err := Loop(reg, &in, &resultBuf, &progressBuf, &stdout, io.Discard); err != nil {
		t.Fatalf("Loop: %v", err)
	}

	var results []report.Report
	rr := report.NewResultReader(&resultBuf)
	for {
		rep, err := rr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decoding result: %v", err)
		}
		results = append(results, rep)
	}

	var progress []report.Progress
	pr := report.NewProgressReader(&progressBuf)
	for {
		p, err := pr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decoding progress: %v", err)
		}
		progress = append(progress, p)
	}
	return results, progress, stdout.String()
}

func TestLoopReportsDone(t *testing.T) {
	results, _, _ := runLoop(t, testRegistry(t),
		report.Command{ID: "a", Task: "echo", Args: json.RawMessage(`"hi"`)})

	if len(results) != 1 {
		t.Fatalf("got %d results, want exactly 1", len(results))
	}
	done, ok := results[0].(report.Done)
	if !ok {
		t.Fatalf("got %s, want done", results[0].Kind())
	}
	if done.ID != "a" || string(done.Result) != `"hi"` {
		t.Errorf("done = %+v", done)
	}
}

func TestLoopProgressThenDone(t *testing.T) {
	results, progress, _ := runLoop(t, testRegistry(t),
		report.Command{ID: "b", Task: "count"})

	if len(progress) != 10 {
		t.Fatalf("got %d progress reports, want 10", len(progress))
	}
	for i, p := range progress {
		if p.Value != i+1 || p.Maximum != 10 {
			t.Errorf("progress[%d] = %+v, want value %d of 10", i, p, i+1)
		}
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	done, ok := results[0].(report.Done)
	if !ok || string(done.Result) != "42" {
		t.Errorf("result = %+v, want done with 42", results[0])
	}
}

func TestLoopFailures(t *testing.T) {
	tests := []struct {
		name        string
		cmd         report.Command
		wantMessage string
	}{
		{"runner error", report.Command{ID: "f", Task: "fail"}, "bad input"},
		{"panic", report.Command{ID: "p", Task: "panic"}, "panic: boom"},
		{"unknown task", report.Command{ID: "u", Task: "missing"}, `unknown task "missing"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, _, _ := runLoop(t, testRegistry(t), tt.cmd)
			if len(results) != 1 {
				t.Fatalf("got %d results, want exactly 1", len(results))
			}
			fail, ok := results[0].(report.Fail)
			if !ok {
				t.Fatalf("got %s, want fail", results[0].Kind())
			}
			if fail.ID != tt.cmd.ID {
				t.Errorf("id = %q, want %q", fail.ID, tt.cmd.ID)
			}
			if !strings.Contains(fail.Message, tt.wantMessage) {
				t.Errorf("message = %q, want substring %q", fail.Message, tt.wantMessage)
			}
			if fail.Traceback == "" {
				t.Error("traceback is empty")
			}
		})
	}
}

func TestLoopSequentialCommands(t *testing.T) {
	results, _, stdout := runLoop(t, testRegistry(t),
		report.Command{ID: "1", Task: "print"},
		report.Command{ID: "2", Task: "echo", Args: json.RawMessage(`"x"`)},
		report.Command{ID: "3", Task: "fail"},
	)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	wantKinds := []report.Kind{report.KindDone, report.KindDone, report.KindFail}
	for i, rep := range results {
		if rep.Kind() != wantKinds[i] {
			t.Errorf("results[%d] = %s, want %s", i, rep.Kind(), wantKinds[i])
		}
	}
	if stdout != "output line\n" {
		t.Errorf("stdout = %q", stdout)
	}
}
