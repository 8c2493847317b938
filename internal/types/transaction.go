package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"
)

const (
	TxTypeP2PK     = "P2PK"
	TxTypeCoinbase = "COINBASE"
)

// UTXO is one spendable output. Txoid is "<tx_id>:<output_index>" and is
// globally unique. Amount is nil when the wire value was not an integer;
// the validator rejects such entries.
type UTXO struct {
	Txoid  string
	Addr   string
	Amount *big.Int
}

type utxoWire struct {
	Txoid  string  `json:"txoid"`
	Addr   string  `json:"addr"`
	Amount *string `json:"amount"`
}

func (u UTXO) MarshalJSON() ([]byte, error) {
	w := utxoWire{Txoid: u.Txoid, Addr: u.Addr}
	if u.Amount != nil {
		s := u.Amount.String()
		w.Amount = &s
	}
	return json.Marshal(w)
}

func (u *UTXO) UnmarshalJSON(data []byte) error {
	var w struct {
		Txoid  string          `json:"txoid"`
		Addr   string          `json:"addr"`
		Amount json.RawMessage `json:"amount"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return err
	}
	u.Txoid = w.Txoid
	u.Addr = w.Addr
	u.Amount = parseAmount(w.Amount)
	return nil
}

// parseAmount accepts bare and quoted decimal integers. Anything else,
// fractional values included, yields nil.
func parseAmount(raw json.RawMessage) *big.Int {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return n
}

// Sig is one (address, signature) pair. Signatures are DER, base64-encoded.
type Sig struct {
	Addr      string `json:"addr"`
	Signature string `json:"signature"`
}

type Transaction struct {
	ID      string `json:"id"`
	Inputs  []UTXO `json:"inputs"`
	Outputs []UTXO `json:"outputs"`
	Sigs    []Sig  `json:"sigs"`
	Txtype  string `json:"txtype"`
}

// CalculateHash recomputes the transaction id: the Merkle root over the
// ordered input txoids.
func (tx Transaction) CalculateHash() (string, error) {
	leaves := make([][]byte, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		leaves = append(leaves, []byte(in.Txoid))
	}
	return MerkleRoot(leaves)
}

// GenerateCoinbase builds the input-less transaction that issues amount to
// minerAddr. The id binds the miner address to the creation time.
func GenerateCoinbase(amount *big.Int, minerAddr string) Transaction {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	id := Sha256Hex([]byte(minerAddr + timestamp))
	return Transaction{
		ID:     id,
		Inputs: []UTXO{},
		Outputs: []UTXO{
			{Txoid: id + ":0", Addr: minerAddr, Amount: new(big.Int).Set(amount)},
		},
		Sigs:   []Sig{},
		Txtype: TxTypeCoinbase,
	}
}

// SumAmounts totals the amounts of a UTXO list. Entries without a valid
// integer amount count as zero; the validator rejects them separately.
func SumAmounts(utxos []UTXO) *big.Int {
	total := new(big.Int)
	for _, u := range utxos {
		if u.Amount != nil {
			total.Add(total, u.Amount)
		}
	}
	return total
}

// Fee is the input total minus the output total.
func (tx Transaction) Fee() *big.Int {
	return new(big.Int).Sub(SumAmounts(tx.Inputs), SumAmounts(tx.Outputs))
}

// SigningDigest is the canonical digest every signature in Sigs covers:
// SHA256(serialize(inputs) || serialize(outputs) || id || txtype). It does
// not depend on Sigs, so signing cannot invalidate other signatures.
func (tx Transaction) SigningDigest() string {
	inputs := tx.Inputs
	if inputs == nil {
		inputs = []UTXO{}
	}
	outputs := tx.Outputs
	if outputs == nil {
		outputs = []UTXO{}
	}
	inBytes, _ := json.Marshal(inputs)
	outBytes, _ := json.Marshal(outputs)

	h := sha256.New()
	h.Write(inBytes)
	h.Write(outBytes)
	h.Write([]byte(tx.ID))
	h.Write([]byte(tx.Txtype))
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalBytes is the versioned canonical serialization (v1) used for
// Merkle leaves and block encoding. Sig entries are ordered by address so
// the encoding does not depend on delivery order.
func (tx Transaction) CanonicalBytes() []byte {
	c := tx
	if c.Inputs == nil {
		c.Inputs = []UTXO{}
	}
	if c.Outputs == nil {
		c.Outputs = []UTXO{}
	}
	c.Sigs = append([]Sig{}, tx.Sigs...)
	sort.Slice(c.Sigs, func(i, j int) bool {
		if c.Sigs[i].Addr != c.Sigs[j].Addr {
			return c.Sigs[i].Addr < c.Sigs[j].Addr
		}
		return c.Sigs[i].Signature < c.Sigs[j].Signature
	})
	b, _ := json.Marshal(c)
	return b
}

// SanitizeTransaction decodes an untrusted payload, rejecting unknown
// fields at every level so remote peers cannot smuggle extra state.
func SanitizeTransaction(raw []byte) (Transaction, error) {
	var tx Transaction
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tx); err != nil {
		return Transaction{}, fmt.Errorf("rejecting transaction payload: %w", err)
	}
	if tx.Txtype == "" {
		tx.Txtype = TxTypeP2PK
	}
	return tx, nil
}
