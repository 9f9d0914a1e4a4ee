// Package transport owns the point-to-point connection between the two
// derived identities. It builds a libp2p host from a deterministic seed,
// discovers the counterpart over mDNS, and hands the rest of the system a
// narrow record-oriented Conn so the transfer core never touches libp2p
// internals.
package transport

import (
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/thiswillbeyourgithub/iroh-send/internal/version"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/identity"
)

// ProtoID is the stream protocol both peers speak for a transfer session.
const ProtoID protocol.ID = "/iroh-send/transfer/3.0.0"

const mdnsServiceTag = "iroh-send"

// Node is a live local peer bound to one derived identity.
type Node struct {
	h    host.Host
	l    *zap.Logger
	mdns mdns.Service

	incoming chan network.Stream
}

// NewNode builds the local libp2p host from a derived seed and starts mDNS
// discovery so the counterpart can be located without any rendezvous server.
func NewNode(seed identity.Seed, listenAddrs []string, l *zap.Logger) (*Node, error) {
	priv, err := identity.Keypair(seed)
	if err != nil {
		return nil, fmt.Errorf("building host key: %w", err)
	}

	addrs := make([]multiaddr.Multiaddr, len(listenAddrs))
	for i, addr := range listenAddrs {
		a, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("parsing listen address: %w", err)
		}
		addrs[i] = a
	}

	h, err := libp2p.New(
		libp2p.UserAgent("iroh-send/"+version.Version()),
		libp2p.Identity(priv),
		libp2p.ListenAddrs(addrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("initing libp2p: %w", err)
	}

	n := &Node{
		h:        h,
		l:        l,
		incoming: make(chan network.Stream, 1),
	}

	n.h.SetStreamHandler(ProtoID, n.handleStream)

	svc := mdns.NewMdnsService(h, mdnsServiceTag, &mdnsNotifee{n})
	if err := svc.Start(); err != nil {
		l.Error("starting mDNS discovery", zap.Error(err))
	} else {
		n.mdns = svc
	}

	l.Debug("node up",
		zap.String("id", h.ID().String()),
		zap.Int("addrs", len(h.Addrs())))

	return n, nil
}

// NewNodeWithHost wraps an existing host, used by tests running over mocknet.
func NewNodeWithHost(h host.Host, l *zap.Logger) *Node {
	n := &Node{
		h:        h,
		l:        l,
		incoming: make(chan network.Stream, 1),
	}
	n.h.SetStreamHandler(ProtoID, n.handleStream)
	return n
}

func (n *Node) handleStream(s network.Stream) {
	n.l.Debug("inbound stream",
		zap.String("peer", s.Conn().RemotePeer().String()))

	select {
	case n.incoming <- s:
	default:
		// One session per node lifetime; surplus streams are refused.
		n.l.Warn("rejecting surplus stream",
			zap.String("peer", s.Conn().RemotePeer().String()))
		s.Reset()
	}
}

// ID returns the local node identity.
func (n *Node) ID() peer.ID {
	return n.h.ID()
}

// Host exposes the underlying libp2p host.
func (n *Node) Host() host.Host {
	return n.h
}

// Close tears down discovery and the host.
func (n *Node) Close() error {
	if n.mdns != nil {
		if err := n.mdns.Close(); err != nil {
			n.l.Error("stopping mDNS discovery", zap.Error(err))
		}
	}
	return n.h.Close()
}

type mdnsNotifee struct {
	n *Node
}

func (m *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.n.h.ID() {
		return
	}
	m.n.l.Debug("mDNS peer found", zap.String("peer", pi.ID.String()))
	m.n.h.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstore.TempAddrTTL)
}
