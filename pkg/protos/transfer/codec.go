package transfer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thiswillbeyourgithub/iroh-send/pkg/transport"
)

// Handshake acknowledgement bytes. A closed connection counts as a
// rejection on the sender side.
const (
	ackOK     byte = 0x01
	ackReject byte = 0x00
)

// SendManifest writes the canonical JSON form of the manifest as a single
// framed record.
func SendManifest(ctx context.Context, conn transport.Conn, m *Manifest) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshalling manifest: %w", err)
	}
	return conn.Send(ctx, b)
}

// RecvManifest reads and validates the manifest record. Validation failures
// are protocol errors; no data is accepted afterwards.
func RecvManifest(ctx context.Context, conn transport.Conn) (*Manifest, error) {
	b, err := conn.Recv(ctx)
	if err != nil {
		return nil, fmt.Errorf("receiving manifest: %w", err)
	}

	m := &Manifest{}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("%w: malformed manifest: %v", ErrProtocol, err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

func sendAck(ctx context.Context, conn transport.Conn, ok bool) error {
	b := ackReject
	if ok {
		b = ackOK
	}
	return conn.Send(ctx, []byte{b})
}

// awaitAck blocks until the receiver accepts or rejects the handshake.
func awaitAck(ctx context.Context, conn transport.Conn) error {
	rec, err := conn.Recv(ctx)
	if err != nil {
		return fmt.Errorf("%w: connection closed during handshake", ErrRemoteRejected)
	}
	if len(rec) != 1 || rec[0] != ackOK {
		return ErrRemoteRejected
	}
	return nil
}
