package session

import (
	"context"
	"io"
)

// workKind tags a workItem the way spec §3 distinguishes WorkItem
// variants by which nullable field is set. Go has no natural
// everything-nullable record, so this expansion follows the §9 "Redesign
// Note" directly: four constructor functions producing an explicitly
// tagged struct instead of a struct with four independently-nullable
// fields (translated from the original's single `Work` record with
// query/params/emitter/source, each nullable).
type workKind int

const (
	kindPoison workKind = iota
	kindRollback
	kindQuery
	kindCopy
)

// copySource is the two-variant "source: Object" polymorphism from
// spec §4.4/§9, re-expressed as an explicit tagged union instead of an
// untyped interface{} so the copy engine's strategy selection is a
// compile-time-checked switch.
type copySource struct {
	reader io.Reader       // buffered strategy
	ch     <-chan CopyChunk // streaming strategy
}

// CopyChunk is one element of a streaming COPY source: either a buffer
// to write, or a terminal error from the producer. This is the Go
// re-expression of a Publisher<ByteBuffer> that can itself call
// onError mid-stream (spec S5) — a plain `<-chan []byte` has no way to
// carry that signal, so the channel's element type carries it instead.
// A clean channel close with no error chunk means the producer
// finished successfully.
type CopyChunk struct {
	Data []byte
	Err  error
}

type workItem struct {
	ctx    context.Context
	kind   workKind
	sql    string
	args   []any
	sink   *resultSink
	source copySource
	future *RowCountFuture
}

// poisonItem and rollbackItem are internally generated, never carrying a
// caller-supplied context (Close takes none), so they run with
// context.Background() like the rest of the loop's own bookkeeping.
func poisonItem() *workItem {
	return &workItem{ctx: context.Background(), kind: kindPoison}
}

func rollbackItem(sql string) *workItem {
	return &workItem{ctx: context.Background(), kind: kindRollback, sql: sql}
}

// queryItem, copyItemFromReader and copyItemFromChan all carry the
// context passed to Submit/CopyFromReader/CopyFrom through to dispatch,
// so a caller-supplied deadline or cancellation actually reaches
// conn.execute and the copy engine instead of being dropped at the
// facade boundary.
func queryItem(ctx context.Context, sql string, args []any, sink *resultSink) *workItem {
	return &workItem{ctx: ctx, kind: kindQuery, sql: sql, args: args, sink: sink}
}

func copyItemFromReader(ctx context.Context, sql string, r io.Reader, future *RowCountFuture) *workItem {
	return &workItem{ctx: ctx, kind: kindCopy, sql: sql, source: copySource{reader: r}, future: future}
}

func copyItemFromChan(ctx context.Context, sql string, ch <-chan CopyChunk, future *RowCountFuture) *workItem {
	return &workItem{ctx: ctx, kind: kindCopy, sql: sql, source: copySource{ch: ch}, future: future}
}
