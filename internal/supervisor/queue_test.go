package supervisor

import (
	"fmt"
	"testing"
	"time"

	"github.com/itaxotools/moldrun/internal/report"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Put(&report.Command{ID: fmt.Sprintf("cmd-%d", i)})
	}
	for i := 0; i < 5; i++ {
		cmd, ok := q.Get()
		if !ok {
			t.Fatalf("Get(%d): queue reported shutdown", i)
		}
		if want := fmt.Sprintf("cmd-%d", i); cmd.ID != want {
			t.Errorf("Get(%d) = %q, want %q", i, cmd.ID, want)
		}
	}
}

func TestQueueDrainsBeforeShutdown(t *testing.T) {
	q := NewQueue()
	q.Put(&report.Command{ID: "queued"})
	q.Put(nil)

	cmd, ok := q.Get()
	if !ok || cmd.ID != "queued" {
		t.Fatalf("Get = (%v, %v), want queued command first", cmd, ok)
	}
	if _, ok := q.Get(); ok {
		t.Error("Get after sentinel = ok, want shutdown")
	}
}

func TestQueueRejectsAfterSentinel(t *testing.T) {
	q := NewQueue()
	q.Put(nil)
	q.Put(&report.Command{ID: "late"})
	if _, ok := q.Get(); ok {
		t.Error("command accepted after sentinel")
	}
}

func TestQueueGetBlocksUntilPut(t *testing.T) {
	q := NewQueue()
	got := make(chan string, 1)
	go func() {
		cmd, ok := q.Get()
		if ok {
			got <- cmd.ID
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put(&report.Command{ID: "later"})

	select {
	case id := <-got:
		if id != "later" {
			t.Errorf("got %q, want %q", id, "later")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Put")
	}
}
