// Package testutil provides the skip-if-no-database connection helper
// and small table assertions shared by internal/session's integration
// tests, trimmed from the teacher's internal/testutil to talk directly
// to *pgx.Conn instead of the teacher's *sql.DB/pgx.Tx executor union
// (this library never uses database/sql).
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

const pingTimeout = 2 * time.Second

// RequireConn opens a *pgx.Conn from PGSESSION_TEST_DSN (or a sane
// local default) and skips the test if the server is unreachable,
// mirroring the teacher's pattern of skipping integration tests rather
// than failing the suite when no database is available in CI.
func RequireConn(t *testing.T) *pgx.Conn {
	t.Helper()

	dsn := os.Getenv("PGSESSION_TEST_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5432 database=postgres user=postgres sslmode=disable"
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("skipping: cannot connect to test database: %v", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close(context.Background())
		t.Skipf("skipping: test database did not respond to ping: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close(context.Background())
	})

	return conn
}

// CreateTable creates tableName with the given column list, failing the
// test on error.
func CreateTable(t *testing.T, conn *pgx.Conn, tableName, columns string) {
	t.Helper()
	ctx := context.Background()
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", tableName, columns)); err != nil {
		t.Fatalf("create table %s: %v", tableName, err)
	}
}

// AssertTableCount asserts that tableName has exactly expected rows.
func AssertTableCount(t *testing.T, conn *pgx.Conn, tableName string, expected int) {
	t.Helper()
	ctx := context.Background()
	var count int
	if err := conn.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)).Scan(&count); err != nil {
		t.Fatalf("count %s: %v", tableName, err)
	}
	if count != expected {
		t.Fatalf("table %s count = %d, want %d", tableName, count, expected)
	}
}
