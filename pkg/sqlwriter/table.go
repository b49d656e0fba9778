package sqlwriter

import (
	"fmt"
	"sort"
)

// ColumnGenerator emits one column definition inside a CREATE TABLE.
// Translated from TableBuilder.java's ColumnGenerator collaborator.
type ColumnGenerator struct {
	name       string
	sqlType    string
	notNull    bool
	defaultSQL string
}

// Column starts a column definition of the given SQL type.
func Column(name, sqlType string) *ColumnGenerator {
	return &ColumnGenerator{name: name, sqlType: sqlType}
}

func (c *ColumnGenerator) NotNull() *ColumnGenerator {
	c.notNull = true
	return c
}

func (c *ColumnGenerator) Default(sql string) *ColumnGenerator {
	c.defaultSQL = sql
	return c
}

func (c *ColumnGenerator) WriteSQL(w Writer) {
	w.Ident(c.name)
	w.Raw(c.sqlType)
	if c.defaultSQL != "" {
		w.Keyword("DEFAULT")
		w.Raw(c.defaultSQL)
	}
	if c.notNull {
		w.Keyword("NOT", "NULL")
	}
}

// TableBuilder emits CREATE TABLE DDL, translated from
// io.zrz.sqlwriter.TableBuilder.
type TableBuilder struct {
	name            string
	columns         []Statement
	storageParams   map[string]string
	ifNotExists     bool
	unlogged        bool
	dropOnCommit    bool
	partitionColumn string
}

// Table starts a table builder for the given (possibly schema-qualified) name.
func Table(name string) *TableBuilder {
	return &TableBuilder{name: name, ifNotExists: true, storageParams: map[string]string{}}
}

func (t *TableBuilder) WithColumn(c *ColumnGenerator) *TableBuilder {
	t.columns = append(t.columns, c)
	return t
}

func (t *TableBuilder) AddTextColumn(name string) *TableBuilder {
	return t.WithColumn(Column(name, "text"))
}

func (t *TableBuilder) AddIntColumn(name string) *TableBuilder {
	return t.WithColumn(Column(name, "int"))
}

func (t *TableBuilder) AddTimestampTZColumn(name string) *TableBuilder {
	return t.WithColumn(Column(name, "timestamptz"))
}

func (t *TableBuilder) Unlogged() *TableBuilder {
	t.unlogged = true
	return t
}

func (t *TableBuilder) IfNotExists(b bool) *TableBuilder {
	t.ifNotExists = b
	return t
}

func (t *TableBuilder) DropOnCommit() *TableBuilder {
	t.dropOnCommit = true
	return t
}

func (t *TableBuilder) PartitionedByList(column string) *TableBuilder {
	t.partitionColumn = column
	return t
}

func (t *TableBuilder) WithStorageParameter(key, value string) *TableBuilder {
	t.storageParams[key] = value
	return t
}

func (t *TableBuilder) WriteSQL(w Writer) {
	w.Keyword("CREATE")
	switch {
	case t.unlogged:
		w.Keyword("UNLOGGED")
	case t.dropOnCommit:
		w.Keyword("LOCAL", "TEMP")
	}
	w.Keyword("TABLE")
	if t.ifNotExists {
		w.Keyword("IF", "NOT", "EXISTS")
	}
	w.Ident(t.name)

	w.StartExpr()
	w.Newline()
	w.List(func(w Writer) { w.Comma(); w.Newline() }, t.columns)
	w.Newline()
	w.EndExpr()

	if t.partitionColumn != "" {
		w.Keyword("PARTITION", "BY", "LIST")
		w.StartExpr()
		w.Ident(t.partitionColumn)
		w.EndExpr()
	}

	if len(t.storageParams) > 0 {
		keys := make([]string, 0, len(t.storageParams))
		for k := range t.storageParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Keyword("WITH")
		w.StartExpr()
		for i, k := range keys {
			if i > 0 {
				w.Comma()
			}
			w.Raw(fmt.Sprintf("%s=%s", k, t.storageParams[k]))
		}
		w.EndExpr()
	}

	if t.dropOnCommit {
		w.Keyword("ON", "COMMIT", "DROP")
	}
}
