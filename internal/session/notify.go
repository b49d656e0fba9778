package session

import (
	"context"
	"sync"

	"github.com/asfixia/pgsession/pkg/pglog"
)

// notifyMessage is the notification payload from spec §6.
type notifyMessage struct {
	Channel    string
	Payload    string
	BackendPID uint32
}

// NotifyMessage is the public form delivered to a Listen subscriber.
type NotifyMessage = notifyMessage

// notifyHub is the per-session channel-name -> subscriber map (spec
// §4.3), translated from PgSingleSession's `listeners` map and
// `pollIfNeeded`. Insertion happens from the facade goroutine (Listen);
// removal happens from Listen itself or from the goroutine it starts to
// watch the LISTEN statement's outcome; dispatch happens from the loop
// goroutine. mu guards the map across all of them.
type notifyHub struct {
	mu        sync.Mutex
	listeners map[string]chan<- NotifyMessage
}

func newNotifyHub() *notifyHub {
	return &notifyHub{listeners: make(map[string]chan<- NotifyMessage)}
}

// register adds a subscriber before the LISTEN submission is enqueued,
// so the mapping is visible before the server could possibly deliver a
// notification on that channel (spec §5 happens-before requirement).
func (h *notifyHub) register(channel string, ch chan<- NotifyMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[channel] = ch
}

func (h *notifyHub) unregister(channel string) chan<- NotifyMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := h.listeners[channel]
	delete(h.listeners, channel)
	return ch
}

func (h *notifyHub) isEmpty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners) == 0
}

func (h *notifyHub) lookup(channel string) (chan<- NotifyMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.listeners[channel]
	return ch, ok
}

// pollIfNeeded polls the connection for pending notifications, biasing
// the wait by delta (positive while the loop waits for work, negative
// right after finishing an item - spec §4.3), and dispatches each to
// its channel's subscriber. Unknown channels are logged and dropped,
// never surfaced as an error (invariant 5). No backpressure is applied:
// subscribers must keep up or buffer, exactly as the spec requires.
func pollIfNeeded(ctx context.Context, conn connHandle, h *notifyHub, delta int) {
	if h.isEmpty() {
		return
	}

	msgs, err := conn.pollNotifications(ctx, delta)
	if err != nil {
		pglog.Default().Warn("notification poll failed: %v", err)
		return
	}

	for _, n := range msgs {
		sub, ok := h.lookup(n.Channel)
		if !ok {
			pglog.Default().Warn("notification for unknown channel %q dropped", n.Channel)
			continue
		}
		sub <- n
	}
}
