package session

import (
	"context"
	"testing"
)

func TestNotifyHubRegisterLookupUnregister(t *testing.T) {
	h := newNotifyHub()
	if !h.isEmpty() {
		t.Fatal("new hub should be empty")
	}

	ch := make(chan NotifyMessage, 1)
	h.register("events", ch)
	if h.isEmpty() {
		t.Fatal("hub should not be empty after register")
	}

	got, ok := h.lookup("events")
	if !ok || got == nil {
		t.Fatal("expected to find registered channel")
	}

	h.unregister("events")
	if !h.isEmpty() {
		t.Fatal("hub should be empty after unregister")
	}
}

func TestPollIfNeededSkipsWhenNoListeners(t *testing.T) {
	h := newNotifyHub()
	conn := newFakeConn()
	polled := false
	conn.notifyFn = func(ctx context.Context, delta int) ([]notifyMessage, error) {
		polled = true
		return nil, nil
	}

	pollIfNeeded(context.Background(), conn, h, 1)
	if polled {
		t.Fatal("should not poll the connection when there are no listeners")
	}
}

func TestPollIfNeededDispatchesToSubscriber(t *testing.T) {
	h := newNotifyHub()
	ch := make(chan NotifyMessage, 1)
	h.register("events", ch)

	conn := newFakeConn()
	conn.notifyFn = func(ctx context.Context, delta int) ([]notifyMessage, error) {
		return []notifyMessage{{Channel: "events", Payload: "hello", BackendPID: 7}}, nil
	}

	pollIfNeeded(context.Background(), conn, h, 1)

	select {
	case msg := <-ch:
		if msg.Payload != "hello" || msg.BackendPID != 7 {
			t.Fatalf("got %+v, want payload=hello pid=7", msg)
		}
	default:
		t.Fatal("expected a dispatched notification")
	}
}

func TestPollIfNeededDropsUnknownChannel(t *testing.T) {
	h := newNotifyHub()
	ch := make(chan NotifyMessage, 1)
	h.register("events", ch)

	conn := newFakeConn()
	conn.notifyFn = func(ctx context.Context, delta int) ([]notifyMessage, error) {
		return []notifyMessage{{Channel: "other", Payload: "nope"}}, nil
	}

	pollIfNeeded(context.Background(), conn, h, 1)

	select {
	case msg := <-ch:
		t.Fatalf("unexpected delivery for unregistered channel: %+v", msg)
	default:
	}
}
