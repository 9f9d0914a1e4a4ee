// Package transfer implements the iroh-send session protocol: the manifest
// handshake followed by a chunked, gzip-compressed, digest-verified stream of
// entries, one at a time, in manifest order.
//
// The wire surface is deliberately small. The manifest travels as one framed
// JSON record, the receiver answers with a one-byte acknowledgement, and each
// entry is a run of framed compressed blocks terminated by a zero-length
// record. Compressor and decompressor state persist across the blocks of an
// entry, so the receiver never needs to know the sender's chunk size.
package transfer

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thiswillbeyourgithub/iroh-send/pkg/transport"
)

// session is the live, single-use context binding a connection, the
// negotiated manifest and the transfer loop. It is mutated only by that one
// loop; the connection handle is never shared across entries concurrently.
type session struct {
	id   string
	conn transport.Conn
	l    *zap.Logger
}

func newSession(conn transport.Conn, l *zap.Logger) *session {
	id := uuid.NewString()
	return &session{
		id:   id,
		conn: conn,
		l:    l.With(zap.String("session", id[:8])),
	}
}

// blockReader presents the framed compressed blocks of one entry as a plain
// byte stream, reporting EOF at the zero-length end-of-entry record.
type blockReader struct {
	ctx  context.Context
	conn transport.Conn
	buf  []byte
	done bool
}

func (r *blockReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.done {
			return 0, io.EOF
		}
		rec, err := r.conn.Recv(r.ctx)
		if err != nil {
			return 0, err
		}
		if len(rec) == 0 {
			r.done = true
			return 0, io.EOF
		}
		r.buf = rec
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
