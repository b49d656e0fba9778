package session

import (
	"bytes"
	"context"
	"io"
)

// binaryCopyPreamble is the fixed header PostgreSQL's binary COPY
// format requires: an 11-byte signature, a 4-byte flags field, and a
// 4-byte header-extension length, both zero (spec §6).
var binaryCopyPreamble = []byte{
	'P', 'G', 'C', 'O', 'P', 'Y', '\n', 0xff, '\r', '\n', 0x00,
	0x00, 0x00, 0x00, 0x00, // flags
	0x00, 0x00, 0x00, 0x00, // header extension length
}

// runCopy drives one COPY IN to completion, selecting strategy by
// which field of source is set (spec §4.4, translated from
// PgSingleSession.processCopy).
func runCopy(ctx context.Context, conn connHandle, sql string, source copySource) (int64, error) {
	if source.reader != nil {
		return runBufferedCopy(ctx, conn, sql, source.reader)
	}
	return runStreamingCopy(ctx, conn, sql, source.ch)
}

// runBufferedCopy prepends the preamble to the user payload by logical
// concatenation (io.MultiReader, no in-memory copy) and hands the
// result to the connection's single-shot copyFromReader primitive.
func runBufferedCopy(ctx context.Context, conn connHandle, sql string, src io.Reader) (int64, error) {
	concat := io.MultiReader(bytes.NewReader(binaryCopyPreamble), src)
	n, err := conn.copyFromReader(ctx, sql, concat)
	if err != nil {
		return 0, &CopyFailureError{Cause: err}
	}
	return n, nil
}

// runStreamingCopy opens a raw copy handle, writes the preamble first,
// then forwards each buffer read off ch until it closes or ctx is
// canceled. Any error, including the source channel itself never
// closing before ctx's deadline, aborts the handle so it is never left
// partially open (spec §4.4).
func runStreamingCopy(ctx context.Context, conn connHandle, sql string, ch <-chan CopyChunk) (int64, error) {
	handle, err := conn.openCopyHandle(ctx, sql)
	if err != nil {
		return 0, &CopyFailureError{Cause: err}
	}

	aborter, canAbort := handle.(interface{ abort(error) })
	abort := func(cause error) (int64, error) {
		if canAbort {
			aborter.abort(cause)
		}
		return 0, &CopyFailureError{Cause: cause}
	}

	if err := handle.write(binaryCopyPreamble); err != nil {
		return abort(err)
	}

	for {
		select {
		case <-ctx.Done():
			return abort(ctx.Err())
		case chunk, ok := <-ch:
			if !ok {
				n, err := handle.endCopy()
				if err != nil {
					return 0, &CopyFailureError{Cause: err}
				}
				return n, nil
			}
			if chunk.Err != nil {
				return abort(chunk.Err)
			}
			if err := handle.write(chunk.Data); err != nil {
				return abort(err)
			}
		}
	}
}
