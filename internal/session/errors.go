package session

import "errors"

// Error kinds from spec §7, as Go sentinels and wrapper types.
var (
	// ErrSessionNotActive is returned synchronously by Submit/CopyFrom*/Listen
	// once accepting has gone false.
	ErrSessionNotActive = errors.New("pgsession: session is no longer active")

	// ErrSessionClosed is delivered to every work item still queued when
	// the session terminates with a non-empty queue.
	ErrSessionClosed = errors.New("pgsession: session has closed")

	// errTransactionFailed is the terminal txnState error whenever the
	// loop observes the connection's transaction status FAILED between
	// items; the statement error that caused it, if any, goes only to
	// that item's own sink.
	errTransactionFailed = errors.New("pgsession: transaction is in a failed state")
)

// PostgresUnavailableError wraps a connection-fatal error observed by
// the loop; the physical connection is closed rather than released.
type PostgresUnavailableError struct {
	Cause error
}

func (e *PostgresUnavailableError) Error() string {
	return "pgsession: postgres unavailable: " + e.Cause.Error()
}

func (e *PostgresUnavailableError) Unwrap() error { return e.Cause }

// ServerError wraps a server-reported error response for one statement.
// The session continues unless the transaction is now FAILED.
type ServerError struct {
	Cause error
}

func (e *ServerError) Error() string { return "pgsession: server error: " + e.Cause.Error() }

func (e *ServerError) Unwrap() error { return e.Cause }

// CopyFailureError wraps any failure raised inside the copy engine.
type CopyFailureError struct {
	Cause error
}

func (e *CopyFailureError) Error() string { return "pgsession: copy failed: " + e.Cause.Error() }

func (e *CopyFailureError) Unwrap() error { return e.Cause }
