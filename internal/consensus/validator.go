package consensus

import (
	"math/big"
	"time"

	"github.com/ghostnetwork/ghost-node/internal/config"
	"github.com/ghostnetwork/ghost-node/internal/types"
)

// PoolCheck answers whether an input is currently spendable. It is injected
// so the same validator can serve the main chain and fork candidates.
type PoolCheck func(types.UTXO) bool

// ValidateBlock runs the consensus checks in their fixed order and returns
// the first failure. It performs no I/O; the chain is consulted only through
// lastBlock and poolCheck. A genesis block (index 0) skips the index and
// previous-hash checks.
func ValidateBlock(block *types.Block, difficulty uint64, lastBlock *types.Block, poolCheck PoolCheck) error {
	index := block.Index.Uint64()

	if index != 0 {
		if lastBlock == nil || index <= lastBlock.Index.Uint64() {
			var prev uint64
			if lastBlock != nil {
				prev = lastBlock.Index.Uint64()
			}
			return InvalidIndexError{Prev: prev, Got: index}
		}
		if block.PreviousHash != lastBlock.Hash {
			return LastHashMismatchError{Got: block.PreviousHash, Expected: lastBlock.Hash}
		}
	}

	if err := validateCoinbase(block); err != nil {
		return err
	}

	if err := validateTransactions(block, poolCheck); err != nil {
		return err
	}

	root, err := block.ComputeMerkleRoot()
	if err != nil || root != block.MerkleRoot {
		return ErrInvalidMerkle
	}

	if computed := block.ComputeHash(); computed != block.Hash {
		return HashMismatchError{Computed: computed, Claimed: block.Hash}
	}
	if !HashBeatsTarget(block.Hash, difficulty) {
		return HashTooHighError{Hash: block.Hash, Difficulty: difficulty}
	}

	if block.Timestamp >= time.Now().Unix()+config.AppConfig.FutureTimeLimit {
		return ErrTimestampTooHigh
	}

	if len(block.Encode()) > config.AppConfig.BlockSizeLimit {
		return ErrBlockTooLarge
	}

	return nil
}

func validateCoinbase(block *types.Block) error {
	if len(block.Transactions) == 0 {
		return ErrNoCoinbase
	}
	coinbase := block.Transactions[0]
	if coinbase.Txtype != types.TxTypeCoinbase {
		return NotCoinbaseError{Txtype: coinbase.Txtype}
	}

	count := 0
	for _, tx := range block.Transactions {
		if tx.Txtype == types.TxTypeCoinbase {
			count++
		}
	}
	if count > 1 {
		return ErrTooManyCoinbase
	}

	fees := new(big.Int)
	for _, tx := range block.Transactions[1:] {
		fees.Add(fees, tx.Fee())
	}
	reward := BlockReward(block.Index.Uint64())
	expected := new(big.Int).Add(reward, fees)

	if len(coinbase.Outputs) != 1 || coinbase.Outputs[0].Amount == nil ||
		coinbase.Outputs[0].Amount.Cmp(expected) != 0 {
		amount := types.SumAmounts(coinbase.Outputs)
		return InvalidCoinbaseError{Fees: fees, Reward: reward, Amount: amount}
	}
	if len(coinbase.Inputs) != 0 {
		return NotCoinbaseError{Txtype: coinbase.Txtype}
	}
	return nil
}

func validateTransactions(block *types.Block, poolCheck PoolCheck) error {
	var errs []error
	for _, tx := range block.Transactions {
		if tx.Txtype == types.TxTypeCoinbase {
			continue
		}
		if err := ValidateTransaction(tx, poolCheck); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return InvalidTransactionsError{Errs: errs}
	}
	return nil
}

// ValidateTransaction runs the non-coinbase transaction checks in order and
// returns the first failure.
func ValidateTransaction(tx types.Transaction, poolCheck PoolCheck) error {
	expected, err := tx.CalculateHash()
	if err != nil || expected != tx.ID {
		return InvalidTxIDError{Expected: expected, Got: tx.ID}
	}

	for _, in := range tx.Inputs {
		if !poolCheck(in) {
			return ErrFailedPoolCheck
		}
	}

	signed := make(map[string]bool, len(tx.Sigs))
	for _, sig := range tx.Sigs {
		signed[sig.Addr] = true
	}
	for _, in := range tx.Inputs {
		if !signed[in.Addr] {
			return ErrSigSetMismatch
		}
	}

	digest := tx.SigningDigest()
	for _, sig := range tx.Sigs {
		if !types.VerifySignature(sig.Addr, sig.Signature, digest) {
			return ErrInvalidTxSig
		}
	}

	for _, u := range append(append([]types.UTXO{}, tx.Inputs...), tx.Outputs...) {
		if u.Amount == nil || u.Amount.Sign() < 0 {
			return ErrAmountNotInteger
		}
	}

	in := types.SumAmounts(tx.Inputs)
	out := types.SumAmounts(tx.Outputs)
	if out.Cmp(in) > 0 {
		return OutputsExceedInputsError{Out: out, In: in}
	}
	return nil
}
