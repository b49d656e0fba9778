package session

import "github.com/jackc/pgx/v5/pgconn"

// ResultEvent is the sink payload taxonomy from spec §6: every event a
// work item's sink can observe before its terminal signal.
type ResultEvent interface{ isResultEvent() }

// CommandStatus reports the outcome of one executed command. A COPY's
// row count is delivered on its RowCountFuture, not as a CommandStatus.
type CommandStatus struct {
	OID         uint32
	Command     string
	UpdateCount int64
	InsertCount int64
}

func (CommandStatus) isResultEvent() {}

// FieldDescription describes one result column, translated from
// pgconn.FieldDescription (teacher pkg/protocol.ConvertFieldDescriptions)
// into the sink's own vocabulary rather than a wire-protocol type,
// since this engine never re-emits PostgreSQL wire messages.
type FieldDescription struct {
	Name         string
	TableOID     uint32
	ColumnNumber int16
	DataTypeOID  uint32
	DataTypeSize int16
	TypeModifier int32
	Format       int16
}

// RowDescription precedes a result set's DataRow events.
type RowDescription struct {
	Fields []FieldDescription
}

func (RowDescription) isResultEvent() {}

// DataRow carries one row's raw column values as returned by the
// server (text or binary per the field's Format).
type DataRow struct {
	Values [][]byte
}

func (DataRow) isResultEvent() {}

// NoticeResponse carries a server NOTICE raised during execution,
// delivered by onPostgresNotice (conn.go) via pgx's OnNotice hook.
type NoticeResponse struct {
	Severity string
	Message  string
}

func (NoticeResponse) isResultEvent() {}

// convertFieldDescriptions adapts pgx's field descriptions to this
// package's own FieldDescription, grounded on the teacher's
// pkg/protocol.ConvertFieldDescriptions (there: pgx -> pgproto3 wire
// type for re-emission to a connected PG client; here: pgx -> in-process
// sink event, since the engine is a client library, not a server).
func convertFieldDescriptions(fds []pgconn.FieldDescription) []FieldDescription {
	out := make([]FieldDescription, len(fds))
	for i, fd := range fds {
		out[i] = FieldDescription{
			Name:         fd.Name,
			TableOID:     fd.TableOID,
			ColumnNumber: int16(fd.TableAttributeNumber),
			DataTypeOID:  fd.DataTypeOID,
			DataTypeSize: fd.DataTypeSize,
			TypeModifier: fd.TypeModifier,
			Format:       fd.Format,
		}
	}
	return out
}
