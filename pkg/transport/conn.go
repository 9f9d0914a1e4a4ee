package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrRecordTooLarge reports an inbound length prefix above MaxRecordSize.
var ErrRecordTooLarge = errors.New("record exceeds maximum size")

// MaxRecordSize caps a single framed record. Compressed blocks are bounded by
// the sender's chunk size, so anything near this limit is a framing fault.
const MaxRecordSize = 64 << 20

// MaxChunkSize caps the sender's window size. The margin leaves room for
// compressor framing overhead, so even a fully incompressible window still
// fits in one record.
const MaxChunkSize = MaxRecordSize - (1 << 20)

// Conn is the narrow message-oriented surface the transfer core consumes.
// Each Send writes exactly one record; each Recv returns exactly one record.
// Zero-length records are valid and round-trip as empty, non-nil payloads.
type Conn interface {
	// Send writes one record and does not return until the record has been
	// flushed to the underlying stream.
	Send(ctx context.Context, p []byte) error

	// Recv blocks until one full record is available.
	Recv(ctx context.Context) ([]byte, error)

	Close() error
}

// streamConn frames records over any byte stream with a big-endian uint32
// length prefix. The same framing carries the manifest and every data block,
// so a zero-length record doubles as the end-of-entry marker.
type streamConn struct {
	rwc io.ReadWriteCloser
	br  *bufio.Reader
	bw  *bufio.Writer

	sendMu sync.Mutex
	recvMu sync.Mutex
}

// NewConn wraps a byte stream in record framing. The stream may be a libp2p
// stream or, in tests, one end of a net.Pipe.
func NewConn(rwc io.ReadWriteCloser) Conn {
	return &streamConn{
		rwc: rwc,
		br:  bufio.NewReader(rwc),
		bw:  bufio.NewWriter(rwc),
	}
}

func (c *streamConn) Send(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(p) > MaxRecordSize {
		return fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(p))
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(p)))
	if _, err := c.bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("writing record header: %w", err)
	}
	if _, err := c.bw.Write(p); err != nil {
		return fmt.Errorf("writing record payload: %w", err)
	}

	// The chunk buffer may be reused by the caller as soon as we return.
	return c.bw.Flush()
}

func (c *streamConn) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	var hdr [4]byte
	if _, err := io.ReadFull(c.br, hdr[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxRecordSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, n)
	}

	p := make([]byte, n)
	if _, err := io.ReadFull(c.br, p); err != nil {
		return nil, fmt.Errorf("reading record payload: %w", err)
	}

	return p, nil
}

func (c *streamConn) Close() error {
	return c.rwc.Close()
}
