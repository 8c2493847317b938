package consensus

import (
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostnetwork/ghost-node/internal/config"
	"github.com/ghostnetwork/ghost-node/internal/types"
)

func TestMain(m *testing.M) {
	config.AppConfig = config.Config{
		BlockSizeLimit:      8 * 1024 * 1024,
		FutureTimeLimit:     60,
		TargetSolvetime:     120,
		RetargetingWindow:   10,
		DiffRebalanceOffset: 0,
		BlockAtFullEmission: 4,
		TotalTokenSupply:    "100",
		AddressVersion:      58,
	}
	os.Exit(m.Run())
}

func allowAll(types.UTXO) bool { return true }
func denyAll(types.UTXO) bool  { return false }

// sealBlock fills in the commitment fields after the transaction set is
// final.
func sealBlock(t *testing.T, b *types.Block) {
	t.Helper()
	root, err := b.ComputeMerkleRoot()
	require.NoError(t, err)
	b.MerkleRoot = root
	b.Hash = b.ComputeHash()
}

func genesisBlock(t *testing.T) *types.Block {
	b := &types.Block{
		Index:        types.EncodeIndex(0),
		Timestamp:    time.Now().Unix(),
		Transactions: []types.Transaction{types.GenerateCoinbase(big.NewInt(40), "miner")},
	}
	sealBlock(t, b)
	return b
}

// signedTransfer builds a fully signed transaction spending one input of
// 60 into an output of 55, leaving a fee of 5.
func signedTransfer(t *testing.T) types.Transaction {
	t.Helper()
	kp, err := types.NewKeyPair()
	require.NoError(t, err)
	recipient, err := types.NewKeyPair()
	require.NoError(t, err)

	addr := kp.Address()
	id, err := types.MerkleRoot([][]byte{[]byte("feed:0")})
	require.NoError(t, err)

	tx := types.Transaction{
		ID:     id,
		Inputs: []types.UTXO{{Txoid: "feed:0", Addr: addr, Amount: big.NewInt(60)}},
		Outputs: []types.UTXO{
			{Txoid: id + ":0", Addr: recipient.Address(), Amount: big.NewInt(55)},
		},
		Txtype: types.TxTypeP2PK,
	}
	tx.Sigs = []types.Sig{{Addr: addr, Signature: kp.Sign(tx.SigningDigest())}}
	return tx
}

func blockAfter(t *testing.T, last *types.Block, txs []types.Transaction) *types.Block {
	b := &types.Block{
		Index:        types.EncodeIndex(last.Index.Uint64() + 1),
		PreviousHash: last.Hash,
		Timestamp:    time.Now().Unix(),
		Transactions: txs,
	}
	sealBlock(t, b)
	return b
}

func TestGenesisAccepted(t *testing.T) {
	b := genesisBlock(t)
	assert.NoError(t, ValidateBlock(b, 0, nil, allowAll))
}

func TestBlockWithTransferAccepted(t *testing.T) {
	genesis := genesisBlock(t)
	tx := signedTransfer(t)
	// reward(1) = 30 plus the transfer fee of 5
	coinbase := types.GenerateCoinbase(big.NewInt(35), "miner")
	b := blockAfter(t, genesis, []types.Transaction{coinbase, tx})

	assert.NoError(t, ValidateBlock(b, 0, genesis, allowAll))
}

func TestEmptyTransactions(t *testing.T) {
	b := &types.Block{Index: types.EncodeIndex(0), Timestamp: time.Now().Unix()}
	err := ValidateBlock(b, 0, nil, allowAll)
	assert.ErrorIs(t, err, ErrNoCoinbase)
}

func TestFirstTransactionNotCoinbase(t *testing.T) {
	tx := signedTransfer(t)
	b := &types.Block{
		Index:        types.EncodeIndex(0),
		Timestamp:    time.Now().Unix(),
		Transactions: []types.Transaction{tx},
	}
	sealBlock(t, b)

	var notCoinbase NotCoinbaseError
	require.ErrorAs(t, ValidateBlock(b, 0, nil, allowAll), &notCoinbase)
	assert.Equal(t, types.TxTypeP2PK, notCoinbase.Txtype)
}

func TestTwoCoinbases(t *testing.T) {
	b := &types.Block{
		Index:     types.EncodeIndex(0),
		Timestamp: time.Now().Unix(),
		Transactions: []types.Transaction{
			types.GenerateCoinbase(big.NewInt(40), "miner"),
			types.GenerateCoinbase(big.NewInt(40), "miner"),
		},
	}
	sealBlock(t, b)
	assert.ErrorIs(t, ValidateBlock(b, 0, nil, allowAll), ErrTooManyCoinbase)
}

func TestWrongCoinbaseAmount(t *testing.T) {
	b := &types.Block{
		Index:        types.EncodeIndex(0),
		Timestamp:    time.Now().Unix(),
		Transactions: []types.Transaction{types.GenerateCoinbase(big.NewInt(41), "miner")},
	}
	sealBlock(t, b)

	var invalid InvalidCoinbaseError
	require.ErrorAs(t, ValidateBlock(b, 0, nil, allowAll), &invalid)
	assert.Equal(t, int64(40), invalid.Reward.Int64())
	assert.Equal(t, int64(41), invalid.Amount.Int64())
	assert.Zero(t, invalid.Fees.Sign())
}

func TestStaleIndexRejected(t *testing.T) {
	genesis := genesisBlock(t)
	b := blockAfter(t, genesis, []types.Transaction{types.GenerateCoinbase(big.NewInt(30), "miner")})

	// A block whose index does not advance the tip is stale.
	var invalid InvalidIndexError
	require.ErrorAs(t, ValidateBlock(b, 0, b, allowAll), &invalid)
	assert.Equal(t, uint64(1), invalid.Prev)
	assert.Equal(t, uint64(1), invalid.Got)
}

func TestPreviousHashMismatch(t *testing.T) {
	genesis := genesisBlock(t)
	b := blockAfter(t, genesis, []types.Transaction{types.GenerateCoinbase(big.NewInt(30), "miner")})
	b.PreviousHash = "ffff"
	sealBlock(t, b)

	var mismatch LastHashMismatchError
	require.ErrorAs(t, ValidateBlock(b, 0, genesis, allowAll), &mismatch)
	assert.Equal(t, genesis.Hash, mismatch.Expected)
}

func TestMerkleRootMismatch(t *testing.T) {
	b := genesisBlock(t)
	b.MerkleRoot = "tampered"
	b.Hash = b.ComputeHash()
	assert.ErrorIs(t, ValidateBlock(b, 0, nil, allowAll), ErrInvalidMerkle)
}

func TestClaimedHashMismatch(t *testing.T) {
	b := genesisBlock(t)
	b.Hash = "0000000000000000000000000000000000000000000000000000000000000000"

	var mismatch HashMismatchError
	require.ErrorAs(t, ValidateBlock(b, 0, nil, allowAll), &mismatch)
	assert.Equal(t, b.Hash, mismatch.Claimed)
}

func TestHashDoesNotBeatTarget(t *testing.T) {
	b := genesisBlock(t)
	var tooHigh HashTooHighError
	require.ErrorAs(t, ValidateBlock(b, 255, nil, allowAll), &tooHigh)
	assert.Equal(t, uint64(255), tooHigh.Difficulty)
}

func TestTimestampBoundary(t *testing.T) {
	b := genesisBlock(t)

	b.Timestamp = time.Now().Unix() + config.AppConfig.FutureTimeLimit + 5
	sealBlock(t, b)
	assert.ErrorIs(t, ValidateBlock(b, 0, nil, allowAll), ErrTimestampTooHigh)

	b.Timestamp = time.Now().Unix() + config.AppConfig.FutureTimeLimit - 5
	sealBlock(t, b)
	assert.NoError(t, ValidateBlock(b, 0, nil, allowAll))
}

func TestBlockSizeBoundary(t *testing.T) {
	b := genesisBlock(t)
	encoded := len(b.Encode())

	old := config.AppConfig.BlockSizeLimit
	t.Cleanup(func() { config.AppConfig.BlockSizeLimit = old })

	config.AppConfig.BlockSizeLimit = encoded
	assert.NoError(t, ValidateBlock(b, 0, nil, allowAll))

	config.AppConfig.BlockSizeLimit = encoded - 1
	assert.ErrorIs(t, ValidateBlock(b, 0, nil, allowAll), ErrBlockTooLarge)
}

func TestFailedPoolCheckSurfaces(t *testing.T) {
	genesis := genesisBlock(t)
	tx := signedTransfer(t)
	coinbase := types.GenerateCoinbase(big.NewInt(35), "miner")
	b := blockAfter(t, genesis, []types.Transaction{coinbase, tx})

	err := ValidateBlock(b, 0, genesis, denyAll)
	var aggregate InvalidTransactionsError
	require.ErrorAs(t, err, &aggregate)
	require.Len(t, aggregate.Errs, 1)
	assert.ErrorIs(t, aggregate.Errs[0], ErrFailedPoolCheck)
}

func TestValidateTransactionChecks(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		tx := signedTransfer(t)
		tx.ID = "bogus"
		var invalid InvalidTxIDError
		assert.ErrorAs(t, ValidateTransaction(tx, allowAll), &invalid)
	})

	t.Run("failed pool check", func(t *testing.T) {
		tx := signedTransfer(t)
		assert.ErrorIs(t, ValidateTransaction(tx, denyAll), ErrFailedPoolCheck)
	})

	t.Run("missing signer", func(t *testing.T) {
		tx := signedTransfer(t)
		extra, err := types.NewKeyPair()
		require.NoError(t, err)
		tx.Inputs = append(tx.Inputs, types.UTXO{Txoid: "feed:1", Addr: extra.Address(), Amount: big.NewInt(0)})
		id, err := tx.CalculateHash()
		require.NoError(t, err)
		tx.ID = id
		assert.ErrorIs(t, ValidateTransaction(tx, allowAll), ErrSigSetMismatch)
	})

	t.Run("bad signature", func(t *testing.T) {
		tx := signedTransfer(t)
		tx.Sigs[0].Signature = "Z m9ndXM="
		assert.ErrorIs(t, ValidateTransaction(tx, allowAll), ErrInvalidTxSig)
	})

	t.Run("non-integer amount", func(t *testing.T) {
		tx := signedTransfer(t)
		kp, err := types.NewKeyPair()
		require.NoError(t, err)
		addr := kp.Address()
		tx.Inputs = []types.UTXO{{Txoid: "feed:0", Addr: addr, Amount: nil}}
		id, err := tx.CalculateHash()
		require.NoError(t, err)
		tx.ID = id
		tx.Sigs = []types.Sig{{Addr: addr, Signature: kp.Sign(tx.SigningDigest())}}
		assert.ErrorIs(t, ValidateTransaction(tx, allowAll), ErrAmountNotInteger)
	})

	t.Run("outputs exceed inputs", func(t *testing.T) {
		tx := signedTransfer(t)
		kp, err := types.NewKeyPair()
		require.NoError(t, err)
		addr := kp.Address()
		tx.Inputs = []types.UTXO{{Txoid: "feed:0", Addr: addr, Amount: big.NewInt(10)}}
		id, err := tx.CalculateHash()
		require.NoError(t, err)
		tx.ID = id
		tx.Outputs = []types.UTXO{{Txoid: id + ":0", Addr: addr, Amount: big.NewInt(11)}}
		tx.Sigs = []types.Sig{{Addr: addr, Signature: kp.Sign(tx.SigningDigest())}}

		var exceed OutputsExceedInputsError
		err = ValidateTransaction(tx, allowAll)
		require.ErrorAs(t, err, &exceed)
		assert.Equal(t, int64(11), exceed.Out.Int64())
		assert.Equal(t, int64(10), exceed.In.Int64())
	})
}

func TestValidatorIsPure(t *testing.T) {
	b := genesisBlock(t)
	first := ValidateBlock(b, 0, nil, allowAll)
	second := ValidateBlock(b, 0, nil, allowAll)
	assert.Equal(t, first, second)
}

func TestErrorsAggregateAllBadTransactions(t *testing.T) {
	genesis := genesisBlock(t)
	tx1 := signedTransfer(t)
	tx2 := signedTransfer(t)
	tx2.ID = "bogus"
	coinbase := types.GenerateCoinbase(new(big.Int).Add(big.NewInt(30), new(big.Int).Add(tx1.Fee(), tx2.Fee())), "miner")
	b := blockAfter(t, genesis, []types.Transaction{coinbase, tx1, tx2})

	err := ValidateBlock(b, 0, genesis, denyAll)
	var aggregate InvalidTransactionsError
	require.True(t, errors.As(err, &aggregate))
	assert.Len(t, aggregate.Errs, 2)
}
