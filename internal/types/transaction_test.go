package types

import (
	"math/big"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostnetwork/ghost-node/internal/config"
)

func TestMain(m *testing.M) {
	config.InitConfig()
	os.Exit(m.Run())
}

func sampleTx() Transaction {
	inputs := []UTXO{
		{Txoid: "aa:0", Addr: "addr1", Amount: big.NewInt(60)},
		{Txoid: "bb:1", Addr: "addr2", Amount: big.NewInt(40)},
	}
	id, _ := MerkleRoot([][]byte{[]byte("aa:0"), []byte("bb:1")})
	return Transaction{
		ID:     id,
		Inputs: inputs,
		Outputs: []UTXO{
			{Txoid: id + ":0", Addr: "addr3", Amount: big.NewInt(95)},
		},
		Sigs: []Sig{
			{Addr: "addr1", Signature: "sig1"},
			{Addr: "addr2", Signature: "sig2"},
		},
		Txtype: TxTypeP2PK,
	}
}

func TestCalculateHash(t *testing.T) {
	tx := sampleTx()
	hash, err := tx.CalculateHash()
	require.NoError(t, err)
	assert.Equal(t, tx.ID, hash)

	expected, err := MerkleRoot([][]byte{[]byte("aa:0"), []byte("bb:1")})
	require.NoError(t, err)
	assert.Equal(t, expected, hash)
}

func TestFee(t *testing.T) {
	tx := sampleTx()
	assert.Equal(t, int64(5), tx.Fee().Int64())
}

func TestGenerateCoinbase(t *testing.T) {
	cb := GenerateCoinbase(big.NewInt(50), "miner")
	assert.Equal(t, TxTypeCoinbase, cb.Txtype)
	assert.Empty(t, cb.Inputs)
	require.Len(t, cb.Outputs, 1)
	assert.Equal(t, cb.ID+":0", cb.Outputs[0].Txoid)
	assert.Equal(t, "miner", cb.Outputs[0].Addr)
	assert.Equal(t, int64(50), cb.Outputs[0].Amount.Int64())
}

func TestSigningDigestIgnoresSigOrder(t *testing.T) {
	tx := sampleTx()
	digest := tx.SigningDigest()

	tx.Sigs[0], tx.Sigs[1] = tx.Sigs[1], tx.Sigs[0]
	assert.Equal(t, digest, tx.SigningDigest())

	tx.Sigs = nil
	assert.Equal(t, digest, tx.SigningDigest())
}

func TestSigningDigestCoversFields(t *testing.T) {
	tx := sampleTx()
	digest := tx.SigningDigest()

	tampered := tx
	tampered.Txtype = TxTypeCoinbase
	assert.NotEqual(t, digest, tampered.SigningDigest())

	tampered = tx
	tampered.Outputs = []UTXO{{Txoid: tx.ID + ":0", Addr: "addr3", Amount: big.NewInt(96)}}
	assert.NotEqual(t, digest, tampered.SigningDigest())
}

func TestCanonicalBytesSortsSigs(t *testing.T) {
	tx := sampleTx()
	canonical := tx.CanonicalBytes()

	tx.Sigs[0], tx.Sigs[1] = tx.Sigs[1], tx.Sigs[0]
	assert.Equal(t, canonical, tx.CanonicalBytes())
}

func TestSanitizeRejectsUnknownFields(t *testing.T) {
	_, err := SanitizeTransaction([]byte(`{"id":"x","inputs":[],"outputs":[],"sigs":[],"txtype":"P2PK","smuggled":1}`))
	assert.Error(t, err)

	_, err = SanitizeTransaction([]byte(`{"id":"x","inputs":[{"txoid":"a:0","addr":"a","amount":"1","extra":true}],"outputs":[]}`))
	assert.Error(t, err)
}

func TestSanitizeDefaultsTxtype(t *testing.T) {
	tx, err := SanitizeTransaction([]byte(`{"id":"x","inputs":[],"outputs":[]}`))
	require.NoError(t, err)
	assert.Equal(t, TxTypeP2PK, tx.Txtype)
}

func TestSanitizeIdempotent(t *testing.T) {
	tx := sampleTx()
	once, err := SanitizeTransaction(tx.CanonicalBytes())
	require.NoError(t, err)
	twice, err := SanitizeTransaction(once.CanonicalBytes())
	require.NoError(t, err)
	assert.Equal(t, once.CanonicalBytes(), twice.CanonicalBytes())
}

func TestSanitizeAmountForms(t *testing.T) {
	tx, err := SanitizeTransaction([]byte(`{"id":"x","inputs":[{"txoid":"a:0","addr":"a","amount":7}],"outputs":[{"txoid":"b:0","addr":"b","amount":"8"}]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), tx.Inputs[0].Amount.Int64())
	assert.Equal(t, int64(8), tx.Outputs[0].Amount.Int64())

	// Fractional amounts survive decoding as nil and fail validation later.
	tx, err = SanitizeTransaction([]byte(`{"id":"x","inputs":[{"txoid":"a:0","addr":"a","amount":7.5}],"outputs":[]}`))
	require.NoError(t, err)
	assert.Nil(t, tx.Inputs[0].Amount)
}

func TestSanitizeLargeAmount(t *testing.T) {
	huge := strings.Repeat("9", 40)
	tx, err := SanitizeTransaction([]byte(`{"id":"x","inputs":[{"txoid":"a:0","addr":"a","amount":"` + huge + `"}],"outputs":[]}`))
	require.NoError(t, err)
	expected, _ := new(big.Int).SetString(huge, 10)
	assert.Zero(t, expected.Cmp(tx.Inputs[0].Amount))
}
