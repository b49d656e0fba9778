package session

import (
	"context"
	"time"
)

// Wait windows for notification polling (spec §4.3): a longer window
// while the loop is idle and can afford to wait for server-pushed
// messages (delta > 0), a near-zero window right after finishing an
// item so the loop gets back to dequeuing promptly (delta <= 0).
const (
	notifyIdleWait  = 200 * time.Millisecond
	notifyDrainWait = 5 * time.Millisecond
)

func notificationWaitContext(parent context.Context, delta int) (context.Context, context.CancelFunc) {
	if delta > 0 {
		return context.WithTimeout(parent, notifyIdleWait)
	}
	return context.WithTimeout(parent, notifyDrainWait)
}
