package sqlstmt

import "testing"

func TestClassifyBasicKinds(t *testing.T) {
	cases := []struct {
		sql  string
		want Kind
	}{
		{"SELECT 1", KindSelect},
		{"INSERT INTO t VALUES (1)", KindDML},
		{"UPDATE t SET x = 1", KindDML},
		{"DELETE FROM t", KindDML},
		{"BEGIN", KindBegin},
		{"COMMIT", KindCommit},
		{"ROLLBACK", KindRollback},
		{"SAVEPOINT sp1", KindSavepoint},
		{"RELEASE SAVEPOINT sp1", KindRelease},
		{"COPY t FROM STDIN", KindCopy},
		{`LISTEN "events"`, KindListen},
		{"CREATE TABLE t (id int)", KindOther},
		{"not valid sql at all (((", KindUnparsable},
	}

	for _, c := range cases {
		if got := Classify(c.sql); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.sql, got, c.want)
		}
	}
}

func TestIsTransactionControl(t *testing.T) {
	control := []Kind{KindBegin, KindCommit, KindRollback, KindSavepoint, KindRelease}
	for _, k := range control {
		if !k.IsTransactionControl() {
			t.Errorf("%v should be transaction control", k)
		}
	}

	notControl := []Kind{KindSelect, KindDML, KindCopy, KindListen, KindOther, KindUnparsable}
	for _, k := range notControl {
		if k.IsTransactionControl() {
			t.Errorf("%v should not be transaction control", k)
		}
	}
}
