package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

// IndexBytes is a block index: a big-endian unsigned integer encoded as
// bytes, hex on the wire.
type IndexBytes []byte

func EncodeIndex(index uint64) IndexBytes {
	if index == 0 {
		return IndexBytes{0}
	}
	return IndexBytes(new(big.Int).SetUint64(index).Bytes())
}

func (ib IndexBytes) Uint64() uint64 {
	return new(big.Int).SetBytes(ib).Uint64()
}

func (ib IndexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(ib))
}

func (ib *IndexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid block index encoding: %w", err)
	}
	*ib = raw
	return nil
}

type Block struct {
	Index        IndexBytes    `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Hash         string        `json:"hash"`
	MerkleRoot   string        `json:"merkle_root"`
	Timestamp    int64         `json:"timestamp"`
	Nonce        uint64        `json:"nonce"`
	Difficulty   uint64        `json:"difficulty"`
	Transactions []Transaction `json:"transactions"`
}

// ComputeHash recomputes the block hash over the header fields. The
// transaction set is covered through the Merkle root.
func (b Block) ComputeHash() string {
	var buf bytes.Buffer
	buf.Write(b.Index)
	buf.WriteString(b.PreviousHash)
	buf.WriteString(b.MerkleRoot)
	buf.WriteString(strconv.FormatInt(b.Timestamp, 10))
	buf.WriteString(strconv.FormatUint(b.Nonce, 10))
	buf.WriteString(strconv.FormatUint(b.Difficulty, 10))
	return Sha256Hex(buf.Bytes())
}

// ComputeMerkleRoot recomputes the root over the canonical serialization of
// each transaction, in block order.
func (b Block) ComputeMerkleRoot() (string, error) {
	leaves := make([][]byte, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		leaves = append(leaves, tx.CanonicalBytes())
	}
	return MerkleRoot(leaves)
}

// Encode is the canonical block serialization (v1), used for the size limit
// and for the wire.
func (b Block) Encode() []byte {
	c := b
	if c.Transactions == nil {
		c.Transactions = []Transaction{}
	}
	out, _ := json.Marshal(c)
	return out
}

// SanitizeBlock decodes an untrusted block payload, rejecting unknown
// fields at every level.
func SanitizeBlock(raw []byte) (Block, error) {
	var b Block
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return Block{}, fmt.Errorf("rejecting block payload: %w", err)
	}
	for i := range b.Transactions {
		if b.Transactions[i].Txtype == "" {
			b.Transactions[i].Txtype = TxTypeP2PK
		}
	}
	return b, nil
}
