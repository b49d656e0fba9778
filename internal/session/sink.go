package session

import "sync"

// resultSink is the loop-thread-only producer half of a work item's
// event stream (spec §4.5: "buffered, unbounded per submission"). A
// plain buffered channel can't satisfy that, since any fixed capacity
// gives a slow consumer a way to stall the loop goroutine's next send
// once a single query outgrows it — not just that query's stream, the
// whole session, since dispatch runs on the session's one consumer
// goroutine. So next() never touches a bounded channel directly: it
// appends to an internal slice guarded by mu and wakes the pump
// goroutine, the same mutex-guarded-slice-plus-notify shape workQueue
// uses for the same reason. The bounded `events` channel exists only
// as a look-ahead handed to the consumer, fed by pump.
type resultSink struct {
	mu      sync.Mutex
	buf     []ResultEvent
	closed  bool
	termErr error
	notify  chan struct{}

	events   chan ResultEvent
	terminal chan error
	once     sync.Once
}

func newResultSink(buffer int) *resultSink {
	s := &resultSink{
		notify:   make(chan struct{}, 1),
		events:   make(chan ResultEvent, buffer),
		terminal: make(chan error, 1),
	}
	go s.pump()
	return s
}

func (s *resultSink) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// next enqueues one event. Must not be called after complete/error.
// Returns immediately regardless of how far behind the consumer is.
func (s *resultSink) next(ev ResultEvent) {
	s.mu.Lock()
	s.buf = append(s.buf, ev)
	s.mu.Unlock()
	s.wake()
}

// complete delivers the single successful terminal signal (invariant 3).
func (s *resultSink) complete() {
	s.finish(nil)
}

// fail delivers the single error terminal signal (invariant 3).
func (s *resultSink) fail(err error) {
	s.finish(err)
}

func (s *resultSink) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.termErr = err
		s.mu.Unlock()
		s.wake()
	})
}

// pump is the sink's sole background goroutine: it drains buf into the
// bounded events channel, blocking there on a slow consumer instead of
// in next(), and once the producer has finished and buf is empty it
// closes events and delivers the terminal signal.
func (s *resultSink) pump() {
	for {
		s.mu.Lock()
		if len(s.buf) == 0 {
			if s.closed {
				err := s.termErr
				s.mu.Unlock()
				close(s.events)
				s.terminal <- err
				close(s.terminal)
				return
			}
			s.mu.Unlock()
			<-s.notify
			continue
		}
		ev := s.buf[0]
		s.buf = s.buf[1:]
		s.mu.Unlock()
		s.events <- ev
	}
}

// ResultStream is the consumer-facing half of a submitted work item: a
// buffered channel of ResultEvents followed by exactly one terminal
// error (nil on success). It is the Go re-expression of the spec's
// backpressured Publisher<QueryResult> — see SPEC_FULL.md §4.1 for why
// a plain buffered channel satisfies the same contract without a
// separate "cold/subscribe" phase.
type ResultStream struct {
	sink *resultSink
}

// Events returns the channel of row/status/notice events. It closes
// once the terminal signal is ready; callers should range over it and
// then call Err to retrieve the terminal outcome.
func (r *ResultStream) Events() <-chan ResultEvent { return r.sink.events }

// Err blocks until the terminal signal arrives and returns it (nil on
// success). Safe to call before or after draining Events.
func (r *ResultStream) Err() error {
	return <-r.sink.terminal
}

// RowCountFuture is the single-value analogue of ResultStream used by
// the COPY paths (spec's exception-carrying Single<Long>, re-expressed
// per SPEC_FULL.md §9 as a (value, error) pair delivered over a
// single-buffered channel).
type RowCountFuture struct {
	result chan rowCountResult
}

type rowCountResult struct {
	n   int64
	err error
}

func newRowCountFuture() *RowCountFuture {
	return &RowCountFuture{result: make(chan rowCountResult, 1)}
}

func (f *RowCountFuture) deliver(n int64, err error) {
	f.result <- rowCountResult{n: n, err: err}
}

// Wait blocks until the copy completes and returns its row count, or
// the error that failed it.
func (f *RowCountFuture) Wait() (int64, error) {
	r := <-f.result
	return r.n, r.err
}
