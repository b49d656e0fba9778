package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// connHandle is the narrow capability spec §6 requires of the
// underlying connection: execute, begin, rollback, poll notifications,
// report transaction state, and the two COPY IN entry points. The
// session loop is the only caller (invariant 1); everything else
// reaches the connection only through this interface.
type connHandle interface {
	execute(ctx context.Context, sql string, args []any, sink *resultSink) error
	begin(ctx context.Context) error
	rollback(ctx context.Context) error
	txStatus() TransactionState
	pollNotifications(ctx context.Context, delta int) ([]notifyMessage, error)
	copyFromReader(ctx context.Context, sql string, r io.Reader) (int64, error)
	openCopyHandle(ctx context.Context, sql string) (copyHandle, error)
	close(ctx context.Context)
}

// copyHandle is the streaming COPY IN primitive from spec §6:
// write/endCopy over a raw copy-in stream the engine controls byte by
// byte.
type copyHandle interface {
	write(p []byte) error
	endCopy() (int64, error)
}

// pgxConn implements connHandle over a live *pgx.Conn, grounded on the
// teacher's direct pgx.Connect-based session (internal/proxy/session.go,
// internal/proxy/connection_pool.go) generalized from "one connection
// per PHP test" to "one connection per session, handed out by a pool."
type pgxConn struct {
	conn *pgx.Conn

	// currentSink is the sink of whatever kindQuery item is presently
	// executing, read by onPostgresNotice to route a mid-query NOTICE
	// (spec's NoticeResponse) to the right work item's event stream. It
	// is only ever written by the session loop goroutine from execute;
	// atomic because pgx invokes the notice callback synchronously on
	// the same connection reader path, not a separate goroutine, but
	// nothing enforces that guarantee across pgx versions.
	currentSink atomic.Pointer[resultSink]
}

func newPgxConn(conn *pgx.Conn) *pgxConn {
	c := &pgxConn{conn: conn}
	noticeRegistry.Store(conn.PgConn(), c)
	return c
}

// noticeRegistry maps a live *pgconn.PgConn back to the pgxConn that
// wraps it, since pgx.ConnConfig.OnNotice is a single pool-wide
// callback (set once in OpenPool) with no per-connection closure of
// its own. Entries are added in newPgxConn and removed in close.
var noticeRegistry sync.Map

// onPostgresNotice is wired into pgxpool.Config.ConnConfig.OnNotice
// (OpenPool) so every pooled connection reports NOTICEs raised during
// query execution, grounded on the original's PostgreSQLPacketVisitor
// .visitNoticeResponse: the original engine forwards every NOTICE to
// the subscriber as a distinct event, not just ERROR/ROW/STATUS.
func onPostgresNotice(pg *pgconn.PgConn, n *pgconn.Notice) {
	v, ok := noticeRegistry.Load(pg)
	if !ok {
		return
	}
	sink := v.(*pgxConn).currentSink.Load()
	if sink == nil {
		return
	}
	sink.next(NoticeResponse{Severity: n.Severity, Message: n.Message})
}

// execute runs sql on the connection outside of pgx's own Begin/Commit
// machinery (no pgx.Tx involved): the loop itself decides when a
// transaction needs opening, via begin below, so a plain query never
// carries an implicit BEGIN of its own.
func (c *pgxConn) execute(ctx context.Context, sql string, args []any, sink *resultSink) error {
	c.currentSink.Store(sink)
	defer c.currentSink.Store(nil)

	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return &ServerError{Cause: err}
	}
	defer rows.Close()

	sink.next(RowDescription{Fields: convertFieldDescriptions(rows.FieldDescriptions())})

	for rows.Next() {
		raw := rows.RawValues()
		values := make([][]byte, len(raw))
		for i, v := range raw {
			if v != nil {
				values[i] = append([]byte(nil), v...)
			}
		}
		sink.next(DataRow{Values: values})
	}

	if err := rows.Err(); err != nil {
		return &ServerError{Cause: err}
	}

	tag := rows.CommandTag()
	// The tag text is e.g. "SELECT 1" or "INSERT 0 1"; Command carries
	// only its leading verb, the count goes in UpdateCount.
	command := tag.String()
	if f := strings.Fields(command); len(f) > 0 {
		command = f[0]
	}
	sink.next(CommandStatus{
		Command:     command,
		UpdateCount: tag.RowsAffected(),
	})
	return nil
}

// begin opens a transaction explicitly, the Go-native stand-in for
// pgjdbc's autocommit=false behavior: the original driver auto-sends
// BEGIN before the first statement once autocommit is off, a purely
// client-side emulation with no server-side "autocommit" setting to
// lean on. Here the session loop issues it itself, once per Idle→Open
// transition, mirroring the teacher's own conn.Begin(ctx) at session
// creation (internal/proxy/session.go) but deferred to first use rather
// than eagerly at seize time.
func (c *pgxConn) begin(ctx context.Context) error {
	_, err := c.conn.Exec(ctx, "BEGIN")
	return err
}

func (c *pgxConn) rollback(ctx context.Context) error {
	_, err := c.conn.Exec(ctx, "ROLLBACK")
	return err
}

func (c *pgxConn) txStatus() TransactionState {
	return transactionStateFromTxStatus(c.conn.PgConn().TxStatus())
}

func (c *pgxConn) pollNotifications(ctx context.Context, delta int) ([]notifyMessage, error) {
	waitCtx, cancel := notificationWaitContext(ctx, delta)
	defer cancel()

	var out []notifyMessage
	for {
		n, err := c.conn.WaitForNotification(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return out, nil
			}
			return out, err
		}
		out = append(out, notifyMessage{Channel: n.Channel, Payload: n.Payload, BackendPID: uint32(n.PID)})
	}
}

func (c *pgxConn) copyFromReader(ctx context.Context, sql string, r io.Reader) (int64, error) {
	tag, err := c.conn.PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgxConn) openCopyHandle(ctx context.Context, sql string) (copyHandle, error) {
	return newPipeCopyHandle(ctx, c.conn.PgConn(), sql), nil
}

func (c *pgxConn) close(ctx context.Context) {
	noticeRegistry.Delete(c.conn.PgConn())
	_ = c.conn.Close(ctx)
}

// pipeCopyHandle adapts pgconn's reader-based CopyFrom into the
// spec's write/endCopy streaming primitive using an io.Pipe: the read
// side feeds CopyFrom on a background goroutine, the write side is
// what copyEngine's streaming strategy writes each buffer to (spec
// §4.4/§6).
type pipeCopyHandle struct {
	pw     *io.PipeWriter
	result chan copyFromResult
}

type copyFromResult struct {
	tag pgconn.CommandTag
	err error
}

func newPipeCopyHandle(ctx context.Context, pg *pgconn.PgConn, sql string) *pipeCopyHandle {
	pr, pw := io.Pipe()
	h := &pipeCopyHandle{pw: pw, result: make(chan copyFromResult, 1)}

	go func() {
		tag, err := pg.CopyFrom(ctx, pr, sql)
		pr.CloseWithError(err)
		h.result <- copyFromResult{tag: tag, err: err}
	}()

	return h
}

func (h *pipeCopyHandle) write(p []byte) error {
	_, err := h.pw.Write(p)
	return err
}

func (h *pipeCopyHandle) endCopy() (int64, error) {
	if err := h.pw.Close(); err != nil {
		return 0, err
	}
	r := <-h.result
	if r.err != nil {
		return 0, r.err
	}
	return r.tag.RowsAffected(), nil
}

// abort closes the pipe with an error so the background CopyFrom
// unblocks and the handle never leaks a partially-opened copy (spec
// §4.4's "neither strategy may leak a partially-opened copy handle").
func (h *pipeCopyHandle) abort(cause error) {
	h.pw.CloseWithError(cause)
	<-h.result
}
