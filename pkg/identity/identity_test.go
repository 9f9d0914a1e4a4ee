package identity

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSeedDeterministic(t *testing.T) {
	secret := []byte("correct horse battery staple")

	a, err := DeriveSeed(secret, RoleSender)
	assert.NoError(t, err)
	b, err := DeriveSeed(secret, RoleSender)
	assert.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestDeriveSeedRolesDiffer(t *testing.T) {
	secret := []byte("correct horse battery staple")

	s, err := DeriveSeed(secret, RoleSender)
	assert.NoError(t, err)
	r, err := DeriveSeed(secret, RoleReceiver)
	assert.NoError(t, err)

	assert.NotEqual(t, s, r)
}

func TestDeriveSeedKnownVector(t *testing.T) {
	// seed = SHA-256(secret || "sender"), stable across implementations
	want := sha256.Sum256([]byte("topsecretsender"))

	got, err := DeriveSeed([]byte("topsecret"), RoleSender)
	assert.NoError(t, err)
	assert.Equal(t, Seed(want), got)
}

func TestDeriveSeedEmptySecret(t *testing.T) {
	_, err := DeriveSeed(nil, RoleSender)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = DeriveSeed([]byte{}, RoleReceiver)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestPeerIDDeterministic(t *testing.T) {
	secret := []byte("topsecret")

	a, err := PeerID(secret, RoleReceiver)
	assert.NoError(t, err)
	b, err := PeerID(secret, RoleReceiver)
	assert.NoError(t, err)

	assert.Equal(t, a, b)

	other, err := PeerID(secret, RoleSender)
	assert.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestRoleCounterpart(t *testing.T) {
	assert.Equal(t, RoleReceiver, RoleSender.Counterpart())
	assert.Equal(t, RoleSender, RoleReceiver.Counterpart())
	assert.Equal(t, "sender", RoleSender.Tag())
	assert.Equal(t, "receiver", RoleReceiver.Tag())
}
