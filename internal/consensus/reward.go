package consensus

import (
	"math/big"

	"github.com/ghostnetwork/ghost-node/internal/config"
)

// BlockReward follows the triangular emission schedule: the reward decays
// linearly from index 0 to block_at_full_emission, after which it is zero.
// Summed over the whole schedule the rewards equal total_token_supply when
// the supply is divisible by F*(F+1)/2.
//
//	reward(i) = (F - i) * 2T / (F * (F + 1))
func BlockReward(index uint64) *big.Int {
	full := config.AppConfig.BlockAtFullEmission
	if index >= full {
		return new(big.Int)
	}

	supply, ok := new(big.Int).SetString(config.AppConfig.TotalTokenSupply, 10)
	if !ok {
		return new(big.Int)
	}

	f := new(big.Int).SetUint64(full)
	remaining := new(big.Int).SetUint64(full - index)

	numerator := new(big.Int).Mul(remaining, supply)
	numerator.Mul(numerator, big.NewInt(2))
	denominator := new(big.Int).Mul(f, new(big.Int).Add(f, big.NewInt(1)))

	return numerator.Div(numerator, denominator)
}
