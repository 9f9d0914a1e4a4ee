// Package identity derives deterministic peer identities from a shared secret.
//
// Both ends compute the same two node identities locally, with nothing
// exchanged beforehand: seed = SHA-256(secret || roleTag), and the seed feeds
// an Ed25519 key from which the libp2p peer ID falls out. Mismatched secrets
// (or two peers claiming the same role) derive different identities, so the
// dial simply never completes and the secret doubles as an implicit
// authentication check.
package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// ErrConfig reports a missing or empty shared secret.
var ErrConfig = errors.New("shared secret is empty")

// SeedSize is the length of a derived seed in bytes.
const SeedSize = sha256.Size

// Seed is a deterministic Ed25519 seed derived from the shared secret.
// It never crosses the wire and is recomputed fresh each run.
type Seed [SeedSize]byte

// Role selects which identity a process assumes for the session.
type Role int

const (
	RoleSender Role = iota
	RoleReceiver
)

// Tag returns the fixed literal suffix appended to the secret before hashing.
// These values are part of the protocol and must never change.
func (r Role) Tag() string {
	if r == RoleSender {
		return "sender"
	}
	return "receiver"
}

func (r Role) String() string { return r.Tag() }

// Counterpart returns the role of the remote end.
func (r Role) Counterpart() Role {
	if r == RoleSender {
		return RoleReceiver
	}
	return RoleSender
}

// DeriveSeed computes the seed for the given role. Deterministic and pure:
// identical (secret, role) pairs yield identical seeds on any machine.
func DeriveSeed(secret []byte, role Role) (Seed, error) {
	if len(secret) == 0 {
		return Seed{}, ErrConfig
	}

	h := sha256.New()
	h.Write(secret)
	h.Write([]byte(role.Tag()))

	var s Seed
	copy(s[:], h.Sum(nil))
	return s, nil
}

// Keypair expands a seed into the libp2p private key backing the node.
func Keypair(s Seed) (crypto.PrivKey, error) {
	edk := ed25519.NewKeyFromSeed(s[:])

	priv, err := crypto.UnmarshalEd25519PrivateKey(edk)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling derived key: %w", err)
	}

	return priv, nil
}

// PeerID returns the node identity a peer holding the secret would assume
// for the given role. Used by each side to address its counterpart.
func PeerID(secret []byte, role Role) (peer.ID, error) {
	seed, err := DeriveSeed(secret, role)
	if err != nil {
		return "", err
	}

	priv, err := Keypair(seed)
	if err != nil {
		return "", err
	}

	id, err := peer.IDFromPublicKey(priv.GetPublic())
	if err != nil {
		return "", fmt.Errorf("deriving peer ID: %w", err)
	}

	return id, nil
}
