package session

import (
	"bytes"
	"context"
	"io"
)

// fakeConn is an in-memory connHandle double used across this package's
// unit tests, standing in for a live *pgx.Conn the way the teacher's own
// tests fake out the wire connection (internal/proxy/test_helpers.go).
type fakeConn struct {
	status TransactionState

	executeFunc  func(ctx context.Context, sql string, args []any, sink *resultSink) error
	begins       int
	beginErr     error
	rollbacks    int
	rollbackErr  error
	closed       bool
	copyHandle   *fakeCopyHandle
	copyReaderFn func(ctx context.Context, sql string, r io.Reader) (int64, error)
	notifyFn     func(ctx context.Context, delta int) ([]notifyMessage, error)
}

func newFakeConn() *fakeConn {
	return &fakeConn{status: Idle}
}

func (c *fakeConn) execute(ctx context.Context, sql string, args []any, sink *resultSink) error {
	if c.executeFunc != nil {
		return c.executeFunc(ctx, sql, args, sink)
	}
	sink.next(RowDescription{})
	sink.next(CommandStatus{Command: "SELECT", UpdateCount: 1})
	return nil
}

func (c *fakeConn) begin(ctx context.Context) error {
	c.begins++
	if c.beginErr != nil {
		return c.beginErr
	}
	c.status = Open
	return nil
}

func (c *fakeConn) rollback(ctx context.Context) error {
	c.rollbacks++
	c.status = Idle
	return c.rollbackErr
}

func (c *fakeConn) txStatus() TransactionState { return c.status }

func (c *fakeConn) pollNotifications(ctx context.Context, delta int) ([]notifyMessage, error) {
	if c.notifyFn != nil {
		return c.notifyFn(ctx, delta)
	}
	return nil, nil
}

func (c *fakeConn) copyFromReader(ctx context.Context, sql string, r io.Reader) (int64, error) {
	if c.copyReaderFn != nil {
		return c.copyReaderFn(ctx, sql, r)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	return int64(bytes.Count(buf, []byte{'\n'})), nil
}

func (c *fakeConn) openCopyHandle(ctx context.Context, sql string) (copyHandle, error) {
	c.copyHandle = &fakeCopyHandle{}
	return c.copyHandle, nil
}

func (c *fakeConn) close(ctx context.Context) { c.closed = true }

// fakeCopyHandle is the copyHandle double fed by runStreamingCopy.
type fakeCopyHandle struct {
	written [][]byte
	aborted error
	ended   bool
	endErr  error
	endN    int64
}

func (h *fakeCopyHandle) write(p []byte) error {
	cp := append([]byte(nil), p...)
	h.written = append(h.written, cp)
	return nil
}

func (h *fakeCopyHandle) endCopy() (int64, error) {
	h.ended = true
	return h.endN, h.endErr
}

func (h *fakeCopyHandle) abort(cause error) {
	h.aborted = cause
}
