// Package sqlstmt classifies SQL statement kinds using pg_query_go's
// real PostgreSQL grammar, translated from the teacher's
// pkg/sql/ast.go (ClassifyStatement) and narrowed to the handful of
// kinds the session loop reports in its debug logging: is this a
// COPY, a LISTEN, or transaction-control SQL.
package sqlstmt

import (
	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// Kind is a coarse statement classification.
type Kind string

const (
	KindSelect     Kind = "SELECT"
	KindDML        Kind = "DML"
	KindBegin      Kind = "BEGIN"
	KindCommit     Kind = "COMMIT"
	KindRollback   Kind = "ROLLBACK"
	KindSavepoint  Kind = "SAVEPOINT"
	KindRelease    Kind = "RELEASE"
	KindCopy       Kind = "COPY"
	KindListen     Kind = "LISTEN"
	KindOther      Kind = "OTHER"
	KindUnparsable Kind = "UNPARSABLE"
)

// Classify parses sql and returns the kind of its first statement. A
// statement pg_query_go cannot parse (e.g. a driver-specific extension)
// classifies as KindUnparsable rather than erroring, since the loop
// treats an unrecognized statement the same as KindOther.
func Classify(sql string) Kind {
	tree, err := pg_query.Parse(sql)
	if err != nil || tree == nil || len(tree.Stmts) == 0 {
		return KindUnparsable
	}
	return classifyNode(tree.Stmts[0].GetStmt())
}

func classifyNode(stmt *pg_query.Node) Kind {
	if stmt == nil {
		return KindOther
	}
	switch {
	case stmt.GetSelectStmt() != nil:
		return KindSelect
	case stmt.GetInsertStmt() != nil, stmt.GetUpdateStmt() != nil, stmt.GetDeleteStmt() != nil:
		return KindDML
	case stmt.GetCopyStmt() != nil:
		return KindCopy
	case stmt.GetListenStmt() != nil:
		return KindListen
	case stmt.GetTransactionStmt() != nil:
		return classifyTransaction(stmt.GetTransactionStmt())
	default:
		return KindOther
	}
}

func classifyTransaction(t *pg_query.TransactionStmt) Kind {
	switch t.GetKind() {
	case pg_query.TransactionStmtKind_TRANS_STMT_BEGIN, pg_query.TransactionStmtKind_TRANS_STMT_START:
		return KindBegin
	case pg_query.TransactionStmtKind_TRANS_STMT_COMMIT:
		return KindCommit
	case pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK, pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK_TO:
		return KindRollback
	case pg_query.TransactionStmtKind_TRANS_STMT_SAVEPOINT:
		return KindSavepoint
	case pg_query.TransactionStmtKind_TRANS_STMT_RELEASE:
		return KindRelease
	default:
		return KindOther
	}
}

// IsTransactionControl reports whether kind is a transaction-control
// statement (BEGIN, COMMIT, ROLLBACK, SAVEPOINT, RELEASE), mirroring
// teacher query_handler.go's isTransactionControl check. The session
// loop uses it only to choose a debug log phrasing.
func (k Kind) IsTransactionControl() bool {
	switch k {
	case KindBegin, KindCommit, KindRollback, KindSavepoint, KindRelease:
		return true
	default:
		return false
	}
}
