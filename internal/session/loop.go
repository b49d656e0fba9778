package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/asfixia/pgsession/pkg/pglog"
	"github.com/asfixia/pgsession/pkg/sqlstmt"
)

// dequeueWait is the workqueue's bounded poll interval, grounded on
// PgSingleSession.run's workqueue.poll(100, MILLISECONDS).
const dequeueWait = 100 * time.Millisecond

// runLoop is the session's single consumer goroutine: it owns conn
// exclusively (invariant 1) from here until it returns, at which point
// it fires txnState exactly once and never touches conn again.
//
// Grounded on PgSingleSession.run (original_source) and PgSingleSession.run()'s
// outer try/catch that turns a propagated exception into a terminal
// txnstate.onError.
func (s *Session) runLoop(conn connHandle) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("pgsession: session loop panicked: %v", r)
			s.terminate(conn, false, TxnResult{State: ErrorState, Err: err})
		}
	}()

	pglog.Default().Debug("starting session loop")

	for {
		item, ok := s.queue.dequeue(dequeueWait)

		if ok {
			pollIfNeeded(context.Background(), conn, s.listeners, 1)

			done, result := s.dispatch(conn, item)
			if done {
				s.terminate(conn, result.fatal, result.txn)
				return
			}
		} else {
			pollIfNeeded(context.Background(), conn, s.listeners, 1)
		}

		switch conn.txStatus() {
		case Idle:
			// Open Question (a): no implicit idle termination here.
		case Failed:
			pglog.Default().Warn("transaction state now FAILED")
			s.terminate(conn, false, TxnResult{State: ErrorState, Err: errTransactionFailed})
			return
		case Open:
			if !s.accepting.Load() && s.queue.empty() {
				pglog.Default().Info("rolling back to terminate idle-closed session")
				if err := conn.rollback(context.Background()); err != nil {
					s.terminate(conn, isConnectionFatal(err), TxnResult{State: ErrorState, Err: err})
					return
				}
			}
		}
	}
}

// dispatchResult tells runLoop whether the item terminated the loop and,
// if so, with what outcome.
type dispatchResult struct {
	fatal bool
	txn   TxnResult
}

// dispatch drives one work item to completion. The bool return is true
// iff the loop must stop after this item (poison or rollback kinds, or
// an unrecoverable failure).
func (s *Session) dispatch(conn connHandle, item *workItem) (bool, dispatchResult) {
	// item.ctx is the context the caller passed to Submit/CopyFrom*
	// (or context.Background() for the loop's own poison/rollback
	// items), so a caller-supplied deadline or cancellation reaches
	// conn.execute and the copy engine instead of being dropped here.
	ctx := item.ctx

	switch item.kind {
	case kindPoison:
		pglog.Default().Debug("session loop finished: poison received")
		switch conn.txStatus() {
		case Open, Failed:
			pglog.Default().Warn("rolling back on close")
			if err := conn.rollback(ctx); err != nil {
				return true, dispatchResult{fatal: isConnectionFatal(err), txn: TxnResult{State: ErrorState, Err: err}}
			}
		}
		return true, dispatchResult{txn: TxnResult{State: Closed}}

	case kindRollback:
		pglog.Default().Debug("rolling back on explicit request")
		if err := conn.rollback(ctx); err != nil {
			return true, dispatchResult{fatal: isConnectionFatal(err), txn: TxnResult{State: ErrorState, Err: err}}
		}
		return true, dispatchResult{txn: TxnResult{State: Closed}}

	case kindCopy:
		n, err := runCopy(ctx, conn, item.sql, item.source)
		if err != nil {
			pglog.Default().Warn("copy failed: %v", err)
			// CopyFailure has no txnState entry of its own (spec §7):
			// rollback and keep the loop running so already-queued
			// items still drain, unless the failure was itself
			// connection-fatal (e.g. the copy's abort tripped over a
			// dead socket, or an expired caller deadline, since
			// context.DeadlineExceeded satisfies net.Error), in which
			// case there is no connection left to keep serving from.
			// accepting goes false before the future is failed, so a
			// caller that sees the copy error can no longer submit.
			s.accepting.Store(false)
			if isConnectionFatal(err) {
				item.future.deliver(0, err)
				return true, dispatchResult{fatal: true, txn: TxnResult{State: ErrorState, Err: err}}
			}
			// The rollback itself must not inherit item.ctx: a
			// canceled caller context is often exactly what caused the
			// copy to fail, but the loop still owns the connection
			// afterwards and must clean it up regardless.
			rbErr := conn.rollback(context.Background())
			item.future.deliver(0, err)
			if rbErr != nil {
				return true, dispatchResult{fatal: isConnectionFatal(rbErr), txn: TxnResult{State: ErrorState, Err: rbErr}}
			}
			return false, dispatchResult{}
		}
		item.future.deliver(n, nil)
		pollIfNeeded(ctx, conn, s.listeners, -1)
		return false, dispatchResult{}

	case kindQuery:
		kind := sqlstmt.Classify(item.sql)
		if kind.IsTransactionControl() {
			pglog.Default().Debug("processing transaction control statement (%s): %s", kind, item.sql)
		} else {
			pglog.Default().Debug("processing work item (%s): %s", kind, item.sql)
		}
		if conn.txStatus() == Idle {
			if err := conn.begin(ctx); err != nil {
				item.sink.fail(err)
				return true, dispatchResult{fatal: isConnectionFatal(err), txn: TxnResult{State: ErrorState, Err: err}}
			}
		}
		if err := conn.execute(ctx, item.sql, item.args, item.sink); err != nil {
			item.sink.fail(err)
			if isConnectionFatal(err) {
				return true, dispatchResult{fatal: true, txn: TxnResult{State: ErrorState, Err: err}}
			}
		} else {
			item.sink.complete()
		}
		pollIfNeeded(ctx, conn, s.listeners, -1)
		return false, dispatchResult{}

	default:
		panic(fmt.Sprintf("pgsession: unhandled work item kind %v", item.kind))
	}
}

// failQueued drains the queue and errors every still-pending item's
// sink/future with ErrSessionClosed (spec's SessionClosedWithPending).
func (s *Session) failQueued() {
	for _, item := range s.queue.drainAll() {
		switch item.kind {
		case kindQuery:
			item.sink.fail(ErrSessionClosed)
		case kindCopy:
			item.future.deliver(0, ErrSessionClosed)
		}
	}
}

// terminate fires the session's terminal signal exactly once and
// releases or closes the physical connection depending on whether the
// failure was connection-fatal.
func (s *Session) terminate(conn connHandle, connectionFatal bool, result TxnResult) {
	s.accepting.Store(false)

	if connectionFatal {
		pglog.Default().Warn("closing physical connection: %v", result.Err)
		conn.close(context.Background())
		result.Err = &PostgresUnavailableError{Cause: result.Err}
	} else if s.release != nil {
		s.release(conn)
	}

	s.failQueued()
	s.txnState.set(result)
}

// isConnectionFatal distinguishes a connection-fatal error (network
// failure, closed connection) from a server-reported error that leaves
// the connection itself usable, the Go analogue of the original's
// SQLException-vs-other-Exception split in PgSingleSession.run(): a
// SQLException there closes the connection thread; any other exception
// just errors the session's terminal signal and releases the connection.
func isConnectionFatal(err error) bool {
	if err == nil {
		return false
	}

	// A *pgconn.PgError is the server answering with an error response;
	// the wire connection itself is still perfectly usable.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}

	// *ServerError and *CopyFailureError are both wrappers, not causes in
	// their own right: execute() and the copy engine wrap whatever Query
	// or CopyFrom returned, which can itself be a dead-socket net.Error
	// rather than a genuine server error response, so both recurse into
	// their Cause instead of assuming the wrapper type settles it.
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return isConnectionFatal(serverErr.Cause)
	}

	var copyErr *CopyFailureError
	if errors.As(err, &copyErr) {
		return isConnectionFatal(copyErr.Cause)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, net.ErrClosed)
}
