package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"sync"
)

var sha256Pool = &sync.Pool{
	New: func() any {
		return sha256.New()
	},
}

var ErrEmptyMerkleInput = errors.New("merkle root of empty leaf list")

// Sha256Hex returns the lowercase hex SHA-256 of data.
func Sha256Hex(data []byte) string {
	h := sha256Pool.Get().(hash.Hash)
	defer sha256Pool.Put(h)

	h.Reset()
	_, _ = h.Write(data)

	sum := h.Sum(make([]byte, 0, sha256.Size))
	return hex.EncodeToString(sum)
}

// MerkleRoot commits to an ordered list of leaves. Each leaf is hashed,
// then adjacent pairs are concatenated and re-hashed level by level; an odd
// tail is paired with itself.
func MerkleRoot(leaves [][]byte) (string, error) {
	if len(leaves) == 0 {
		return "", ErrEmptyMerkleInput
	}

	level := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		level = append(level, Sha256Hex(leaf))
	}
	return merkleLevel(level), nil
}

func merkleLevel(hashes []string) string {
	if len(hashes) == 1 {
		return hashes[0]
	}

	if len(hashes)%2 != 0 {
		hashes = append(hashes, hashes[len(hashes)-1])
	}

	parents := make([]string, 0, len(hashes)/2)
	for i := 0; i < len(hashes); i += 2 {
		parents = append(parents, Sha256Hex([]byte(hashes[i]+hashes[i+1])))
	}
	return merkleLevel(parents)
}
