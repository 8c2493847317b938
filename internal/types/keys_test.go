package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	addr := kp.Address()
	pub, err := PubKeyFromAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, kp.priv.PubKey().SerializeCompressed(), pub.SerializeCompressed())
}

func TestPubKeyFromAddressRejectsGarbage(t *testing.T) {
	_, err := PubKeyFromAddress("not-an-address")
	assert.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)
	addr := kp.Address()

	digest := Sha256Hex([]byte("payload"))
	sig := kp.Sign(digest)

	assert.True(t, VerifySignature(addr, sig, digest))
	assert.False(t, VerifySignature(addr, sig, Sha256Hex([]byte("other"))))

	other, err := NewKeyPair()
	require.NoError(t, err)
	assert.False(t, VerifySignature(other.Address(), sig, digest))
}

func TestKeyPairFromBytes(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	restored := KeyPairFromBytes(kp.Bytes())
	assert.Equal(t, kp.Address(), restored.Address())
}
