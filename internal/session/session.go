package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/asfixia/pgsession/pkg/pglog"
	"github.com/asfixia/pgsession/pkg/sqlwriter"
)

// defaultSinkBuffer sizes the look-ahead on a resultSink's outward
// events channel only; it does not bound how many events the sink can
// hold; the loop goroutine's own next() calls never block on it (see
// sink.go). Matches the teacher's bounded-channel sizing in
// internal/proxy, reused here for the consumer-facing channel only.
const defaultSinkBuffer = 64

// queryFactory is the narrow capability a Session needs from its owning
// Pool: building and combining statements. Kept separate from the pool's
// full surface so Session never holds a cyclic reference back into Pool
// (spec §9 "Pool <-> Session should not be cyclic").
type queryFactory interface {
	CreateQuery(sql string) string
	CombineQueries(sqls []string) string
}

// Session is a single seized connection, outside the scope of any
// transaction although one may be opened by submitted statements
// (translated from PgSingleSession, original_source).
type Session struct {
	accepting atomic.Bool
	queue     *workQueue
	txnState  *onceSignal[TxnResult]
	listeners *notifyHub
	pool      queryFactory
	release   func(connHandle)

	closeOnce sync.Once
}

// newSession constructs a Session and starts its owning consumer
// goroutine. release, if non-nil, is called with the connHandle when
// the loop terminates without a connection-fatal error, so the pool can
// reclaim or re-validate it.
func newSession(conn connHandle, pool queryFactory, release func(connHandle)) *Session {
	s := &Session{
		queue:     newWorkQueue(),
		txnState:  newOnceSignal[TxnResult](),
		listeners: newNotifyHub(),
		pool:      pool,
		release:   release,
	}
	s.accepting.Store(true)

	go s.runLoop(conn)

	return s
}

// Submit enqueues sql for execution and returns a stream of its result
// events. Precondition accepting: violated calls return a nil stream and
// ErrSessionNotActive synchronously, never via the stream (spec §4.1).
func (s *Session) Submit(ctx context.Context, sql string, args ...any) (*ResultStream, error) {
	if !s.accepting.Load() {
		return nil, ErrSessionNotActive
	}

	sink := newResultSink(defaultSinkBuffer)
	pglog.Default().Debug("added work item: %s", sql)
	s.queue.enqueue(queryItem(ctx, sql, args, sink))
	return &ResultStream{sink: sink}, nil
}

// CopyFromReader starts a COPY using src as the buffered tuple source;
// the caller owns src and must not write to it after calling this.
func (s *Session) CopyFromReader(ctx context.Context, sql string, src io.Reader) (*RowCountFuture, error) {
	if !s.accepting.Load() {
		return nil, ErrSessionNotActive
	}

	future := newRowCountFuture()
	pglog.Default().Debug("starting buffered COPY: %s", sql)
	s.queue.enqueue(copyItemFromReader(ctx, sql, src, future))
	return future, nil
}

// CopyFrom starts a COPY fed by a channel of CopyChunks, the streaming
// analogue of the original's Publisher<ByteBuf> source. The channel
// must be closed by the producer when done; a CopyChunk carrying a
// non-nil Err aborts the copy with that error (spec scenario S5).
func (s *Session) CopyFrom(ctx context.Context, sql string, src <-chan CopyChunk) (*RowCountFuture, error) {
	if !s.accepting.Load() {
		return nil, ErrSessionNotActive
	}

	future := newRowCountFuture()
	pglog.Default().Debug("starting streaming COPY: %s", sql)
	s.queue.enqueue(copyItemFromChan(ctx, sql, src, future))
	return future, nil
}

// Listen subscribes to a server notification channel. Registration
// happens before LISTEN is submitted so the mapping is visible before
// the server could possibly deliver on it (spec §5 happens-before).
func (s *Session) Listen(ctx context.Context, channel string) (<-chan NotifyMessage, error) {
	if !s.accepting.Load() {
		return nil, ErrSessionNotActive
	}

	ch := make(chan NotifyMessage, defaultSinkBuffer)
	s.listeners.register(channel, ch)

	stream, err := s.Submit(ctx, sqlwriter.Render(sqlwriter.Listen(channel)))
	if err != nil {
		s.listeners.unregister(channel)
		return nil, err
	}

	go func() {
		for range stream.Events() {
		}
		if err := stream.Err(); err != nil {
			pglog.Default().Warn("listen %s failed: %v", channel, err)
			if sub := s.listeners.unregister(channel); sub != nil {
				close(sub)
			}
		}
	}()

	return ch, nil
}

// Lock acquires a session-level (non-transactional) advisory lock keyed
// by key, adapted from the teacher's PGTest.acquireAdvisoryLock
// (internal/proxy/session.go), which guards concurrent sessions from
// racing on the same logical test ID. Unlike the teacher's per-testID
// key derivation, the caller picks key directly since this library has
// no test-ID concept to hash.
func (s *Session) Lock(ctx context.Context, key int64) error {
	return s.runToCompletion(ctx, sqlwriter.Render(sqlwriter.AdvisoryLock(key)))
}

// Unlock releases a lock taken by Lock, adapted from the teacher's
// PGTest.releaseAdvisoryLock.
func (s *Session) Unlock(ctx context.Context, key int64) error {
	return s.runToCompletion(ctx, sqlwriter.Render(sqlwriter.AdvisoryUnlock(key)))
}

// runToCompletion submits sql and drains its event stream, returning
// only the terminal error, for callers that only care whether a
// statement succeeded.
func (s *Session) runToCompletion(ctx context.Context, sql string) error {
	stream, err := s.Submit(ctx, sql)
	if err != nil {
		return err
	}
	for range stream.Events() {
	}
	return stream.Err()
}

// Close stops accepting new work and enqueues the poison item that
// drains the session (idempotent).
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.accepting.Store(false)
		pglog.Default().Debug("closing single session")
		s.queue.enqueue(poisonItem())
	})
}

// Done returns the session's terminal signal: blocks until the loop
// goroutine has fully finished and reports how it finished.
func (s *Session) Done() TxnResult {
	return s.txnState.wait()
}

// CreateQuery delegates to the owning pool's statement factory.
func (s *Session) CreateQuery(sql string) string { return s.pool.CreateQuery(sql) }
