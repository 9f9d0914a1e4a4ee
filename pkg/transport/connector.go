package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// ErrConnection reports that every dial attempt to the counterpart failed.
var ErrConnection = errors.New("could not connect to peer")

// Connect dials the counterpart identity until a ready stream is open,
// sleeping a fixed interval between bounded attempts. This is the only retry
// loop in the system; once data is flowing, any failure aborts the session.
func (n *Node) Connect(ctx context.Context, remote peer.ID, attempts int, interval time.Duration) (Conn, error) {
	if attempts < 1 {
		attempts = 1
	}

	n.l.Info("connecting to peer", zap.String("peer", remote.String()))

	var conn Conn
	dial := func() error {
		actx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		if err := n.h.Connect(actx, peer.AddrInfo{ID: remote}); err != nil {
			n.l.Debug("dial attempt failed", zap.Error(err))
			return err
		}

		// A dial that returned is not necessarily usable yet; open the
		// session stream to confirm the peer answers our protocol.
		s, err := n.h.NewStream(actx, remote, ProtoID)
		if err != nil {
			n.l.Debug("stream open failed", zap.Error(err))
			return err
		}

		conn = NewConn(s)
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)),
		ctx,
	)

	if err := backoff.Retry(dial, bo); err != nil {
		return nil, fmt.Errorf("%w: %d attempts exhausted: %v", ErrConnection, attempts, err)
	}

	n.l.Info("connected to peer", zap.String("peer", remote.String()))
	return conn, nil
}

// Accept waits for the counterpart to open the session stream, bounded by
// the same attempts×interval window the dialer uses. Streams from any peer
// other than the derived counterpart identity are reset and ignored: holding
// the shared secret is what authenticates the sender.
func (n *Node) Accept(ctx context.Context, from peer.ID, attempts int, interval time.Duration) (Conn, error) {
	if attempts < 1 {
		attempts = 1
	}

	wait := time.Duration(attempts) * interval
	n.l.Info("waiting for peer",
		zap.String("peer", from.String()),
		zap.Duration("timeout", wait))

	t := time.NewTimer(wait)
	defer t.Stop()

	for {
		select {
		case s := <-n.incoming:
			if s.Conn().RemotePeer() != from {
				n.l.Warn("rejecting stream from unexpected peer",
					zap.String("peer", s.Conn().RemotePeer().String()))
				s.Reset()
				continue
			}
			n.l.Info("peer connected")
			return NewConn(s), nil
		case <-t.C:
			return nil, fmt.Errorf("%w: no inbound connection after %s", ErrConnection, wait)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrConnection, ctx.Err())
		}
	}
}
