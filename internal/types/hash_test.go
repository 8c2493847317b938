package types

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256Hex(t *testing.T) {
	sum := sha256.Sum256([]byte("ghost"))
	assert.Equal(t, hex.EncodeToString(sum[:]), Sha256Hex([]byte("ghost")))
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	root, err := MerkleRoot([][]byte{[]byte("only")})
	require.NoError(t, err)
	assert.Equal(t, Sha256Hex([]byte("only")), root)
}

func TestMerkleRootPair(t *testing.T) {
	left := Sha256Hex([]byte("a"))
	right := Sha256Hex([]byte("b"))

	root, err := MerkleRoot([][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, Sha256Hex([]byte(left+right)), root)
}

func TestMerkleRootOddTailDuplication(t *testing.T) {
	odd, err := MerkleRoot([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)
	padded, err := MerkleRoot([][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("c")})
	require.NoError(t, err)
	assert.Equal(t, padded, odd)
}

func TestMerkleRootOrderMatters(t *testing.T) {
	ab, err := MerkleRoot([][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	ba, err := MerkleRoot([][]byte{[]byte("b"), []byte("a")})
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba)
}

func TestMerkleRootEmptyRejected(t *testing.T) {
	_, err := MerkleRoot(nil)
	assert.ErrorIs(t, err, ErrEmptyMerkleInput)
}
