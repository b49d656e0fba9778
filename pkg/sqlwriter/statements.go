package sqlwriter

import "strconv"

// Listen builds `LISTEN <channel>`, translated from the original's
// SqlWriters.listen(channel) helper used by PgSingleSession.listen.
func Listen(channel string) Statement {
	return StatementFunc(func(w Writer) {
		w.Keyword("LISTEN")
		w.Ident(channel)
	})
}

// Unlisten builds `UNLISTEN <channel>`.
func Unlisten(channel string) Statement {
	return StatementFunc(func(w Writer) {
		w.Keyword("UNLISTEN")
		w.Ident(channel)
	})
}

// AdvisoryLock builds `SELECT pg_advisory_lock (<key>)`, with key
// written inline as a decimal literal rather than a bind parameter, adapted
// from the teacher's acquireAdvisoryLock (internal/proxy/session.go)
// into a generation-DSL statement rather than an inline fmt.Sprintf.
func AdvisoryLock(key int64) Statement {
	return rawSelectBigint("pg_advisory_lock", key)
}

// AdvisoryUnlock builds `SELECT pg_advisory_unlock (<key>)`, key inline.
func AdvisoryUnlock(key int64) Statement {
	return rawSelectBigint("pg_advisory_unlock", key)
}

func rawSelectBigint(fn string, key int64) Statement {
	return StatementFunc(func(w Writer) {
		w.Keyword("SELECT")
		w.Raw(fn)
		w.StartExpr()
		w.Raw(strconv.FormatInt(key, 10))
		w.EndExpr()
	})
}
