package consensus

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Every way a block or transaction can fail validation maps to exactly one
// of the kinds below, so peers on both sides of a dispute can name the
// disagreement.

var (
	ErrNoCoinbase       = errors.New("block has no coinbase transaction")
	ErrTooManyCoinbase  = errors.New("block has more than one coinbase transaction")
	ErrInvalidMerkle    = errors.New("merkle root does not match transactions")
	ErrTimestampTooHigh = errors.New("block timestamp too far in the future")
	ErrBlockTooLarge    = errors.New("encoded block exceeds size limit")
	ErrFailedPoolCheck  = errors.New("transaction input is not spendable")
	ErrSigSetMismatch   = errors.New("inputs reference addresses missing from the signature set")
	ErrInvalidTxSig     = errors.New("transaction signature does not verify")
	ErrAmountNotInteger = errors.New("utxo amount is not an integer")
)

type InvalidIndexError struct {
	Prev uint64
	Got  uint64
}

func (e InvalidIndexError) Error() string {
	return fmt.Sprintf("block index %d does not advance last index %d", e.Got, e.Prev)
}

// LastHashMismatchError reports a previous_hash that does not chain onto
// the accepted tip.
type LastHashMismatchError struct {
	Got      string
	Expected string
}

func (e LastHashMismatchError) Error() string {
	return fmt.Sprintf("previous hash %s does not match last block hash %s", e.Got, e.Expected)
}

// HashMismatchError reports a claimed block hash that differs from the
// recomputed one.
type HashMismatchError struct {
	Computed string
	Claimed  string
}

func (e HashMismatchError) Error() string {
	return fmt.Sprintf("computed block hash %s does not match provided %s", e.Computed, e.Claimed)
}

// HashTooHighError reports a hash that does not beat the difficulty target.
type HashTooHighError struct {
	Hash       string
	Difficulty uint64
}

func (e HashTooHighError) Error() string {
	return fmt.Sprintf("block hash %s does not beat difficulty %d", e.Hash, e.Difficulty)
}

type NotCoinbaseError struct {
	Txtype string
}

func (e NotCoinbaseError) Error() string {
	return fmt.Sprintf("first transaction has type %q, expected coinbase", e.Txtype)
}

type InvalidCoinbaseError struct {
	Fees   *big.Int
	Reward *big.Int
	Amount *big.Int
}

func (e InvalidCoinbaseError) Error() string {
	return fmt.Sprintf("coinbase amount %v does not equal reward %v plus fees %v", e.Amount, e.Reward, e.Fees)
}

type InvalidTxIDError struct {
	Expected string
	Got      string
}

func (e InvalidTxIDError) Error() string {
	return fmt.Sprintf("transaction id %s does not match recomputed %s", e.Got, e.Expected)
}

type OutputsExceedInputsError struct {
	Out *big.Int
	In  *big.Int
}

func (e OutputsExceedInputsError) Error() string {
	return fmt.Sprintf("outputs total %v exceeds inputs total %v", e.Out, e.In)
}

// InvalidTransactionsError aggregates the per-transaction failures of one
// block.
type InvalidTransactionsError struct {
	Errs []error
}

func (e InvalidTransactionsError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid transactions: %s", strings.Join(msgs, "; "))
}

func (e InvalidTransactionsError) Unwrap() []error {
	return e.Errs
}
