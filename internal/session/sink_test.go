package session

import (
	"errors"
	"testing"
	"time"
)

func TestResultSinkDeliversEventsThenComplete(t *testing.T) {
	sink := newResultSink(4)
	stream := &ResultStream{sink: sink}

	sink.next(RowDescription{Fields: []FieldDescription{{Name: "id"}}})
	sink.next(DataRow{Values: [][]byte{[]byte("1")}})
	sink.complete()

	var events []ResultEvent
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("unexpected terminal error: %v", err)
	}
}

func TestResultSinkFailStopsBeforeComplete(t *testing.T) {
	sink := newResultSink(4)
	stream := &ResultStream{sink: sink}

	boom := errors.New("boom")
	sink.next(RowDescription{})
	sink.fail(boom)

	for range stream.Events() {
	}
	if err := stream.Err(); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestResultSinkTerminalFiresOnce(t *testing.T) {
	sink := newResultSink(1)
	sink.complete()
	sink.fail(errors.New("should be ignored"))

	if err := (&ResultStream{sink: sink}).Err(); err != nil {
		t.Fatalf("second terminal call should be ignored, got %v", err)
	}
}

// TestResultSinkNextNeverBlocksPastChannelCapacity proves next() does
// not stop at the events channel's small look-ahead capacity: a
// producer can push far more rows than defaultSinkBuffer before the
// consumer ever reads one, without next() itself blocking, since the
// backlog lives on the sink's internal slice rather than the channel.
func TestResultSinkNextNeverBlocksPastChannelCapacity(t *testing.T) {
	sink := newResultSink(4)

	const rows = 10_000
	done := make(chan struct{})
	go func() {
		for i := 0; i < rows; i++ {
			sink.next(DataRow{Values: [][]byte{[]byte("x")}})
		}
		sink.complete()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("next() blocked well past the channel's look-ahead capacity")
	}

	stream := &ResultStream{sink: sink}
	n := 0
	for range stream.Events() {
		n++
	}
	if n != rows {
		t.Fatalf("got %d events, want %d", n, rows)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("unexpected terminal error: %v", err)
	}
}

func TestRowCountFutureWait(t *testing.T) {
	f := newRowCountFuture()
	f.deliver(42, nil)

	n, err := f.Wait()
	if err != nil || n != 42 {
		t.Fatalf("got (%d, %v), want (42, nil)", n, err)
	}
}

func TestRowCountFutureWaitError(t *testing.T) {
	f := newRowCountFuture()
	want := errors.New("copy failed")
	f.deliver(0, want)

	_, err := f.Wait()
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
}
