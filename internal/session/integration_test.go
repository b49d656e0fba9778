package session

import (
	"context"
	"testing"
	"time"

	"github.com/asfixia/pgsession/internal/testutil"
)

// These tests exercise a real Session against a live PostgreSQL server;
// they skip themselves (via testutil.RequireConn) when one isn't
// reachable, the same opt-in-integration pattern the teacher's own
// internal/proxy tests use.

func TestSessionSubmitAgainstRealPostgres(t *testing.T) {
	conn := testutil.RequireConn(t)

	sess := newSession(newPgxConn(conn), fakeQueryFactory{}, nil)
	defer sess.Close()

	stream, err := sess.Submit(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var rows int
	for range stream.Events() {
		rows++
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if rows == 0 {
		t.Fatal("expected at least a RowDescription/CommandStatus event")
	}
}

// TestSessionRollbackOnCloseWithOpenTransaction exercises spec
// scenario S2 end to end: an ordinary INSERT opens a transaction via
// the session's own implicit BEGIN (no statement submitted by the
// caller ever says BEGIN), and closing the session while that
// transaction is OPEN rolls it back rather than leaving it to
// auto-commit.
func TestSessionRollbackOnCloseWithOpenTransaction(t *testing.T) {
	conn := testutil.RequireConn(t)
	testutil.CreateTable(t, conn, "pgsession_s2_rollback", "id INT")
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), "DROP TABLE IF EXISTS pgsession_s2_rollback")
	})

	sess := newSession(newPgxConn(conn), fakeQueryFactory{}, nil)

	stream, err := sess.Submit(context.Background(), "INSERT INTO pgsession_s2_rollback VALUES (1)")
	if err != nil {
		t.Fatalf("Submit INSERT: %v", err)
	}
	for range stream.Events() {
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}

	sess.Close()

	select {
	case <-waitDone(sess):
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate after close with an open transaction")
	}

	result := sess.Done()
	if result.State != Closed {
		t.Fatalf("got %v, want Closed", result.State)
	}

	testutil.AssertTableCount(t, conn, "pgsession_s2_rollback", 0)
}
