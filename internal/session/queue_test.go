package session

import (
	"testing"
	"time"
)

func TestWorkQueueFIFO(t *testing.T) {
	q := newWorkQueue()
	q.enqueue(rollbackItem("a"))
	q.enqueue(rollbackItem("b"))
	q.enqueue(rollbackItem("c"))

	for _, want := range []string{"a", "b", "c"} {
		it, ok := q.dequeue(time.Second)
		if !ok {
			t.Fatalf("expected item %q, got none", want)
		}
		if it.sql != want {
			t.Fatalf("dequeue order: got %q, want %q", it.sql, want)
		}
	}
}

func TestWorkQueueDequeueTimesOut(t *testing.T) {
	q := newWorkQueue()
	start := time.Now()
	_, ok := q.dequeue(20 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout, got an item")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("dequeue returned too early: %v", elapsed)
	}
}

func TestWorkQueueDequeueWakesOnEnqueue(t *testing.T) {
	q := newWorkQueue()
	done := make(chan *workItem, 1)

	go func() {
		it, ok := q.dequeue(time.Second)
		if ok {
			done <- it
		} else {
			done <- nil
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.enqueue(rollbackItem("woken"))

	select {
	case it := <-done:
		if it == nil || it.sql != "woken" {
			t.Fatalf("expected woken item, got %v", it)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up")
	}
}

func TestWorkQueueDrainAll(t *testing.T) {
	q := newWorkQueue()
	q.enqueue(rollbackItem("a"))
	q.enqueue(rollbackItem("b"))

	items := q.drainAll()
	if len(items) != 2 {
		t.Fatalf("drainAll returned %d items, want 2", len(items))
	}
	if !q.empty() {
		t.Fatal("queue should be empty after drainAll")
	}
}

func TestWorkQueueEmpty(t *testing.T) {
	q := newWorkQueue()
	if !q.empty() {
		t.Fatal("new queue should be empty")
	}
	q.enqueue(poisonItem())
	if q.empty() {
		t.Fatal("queue should not be empty after enqueue")
	}
}
