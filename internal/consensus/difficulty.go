package consensus

import (
	"math/big"

	"github.com/ghostnetwork/ghost-node/internal/config"
	"github.com/ghostnetwork/ghost-node/internal/types"
)

var maxTarget = new(big.Int).Lsh(big.NewInt(1), 256)

// HashBeatsTarget interprets the hex hash as a big-endian integer and
// compares it against target = 2^(256-difficulty). Consensus-critical;
// identical across implementations.
func HashBeatsTarget(hash string, difficulty uint64) bool {
	value, ok := new(big.Int).SetString(hash, 16)
	if !ok {
		return false
	}
	target := maxTarget
	if difficulty > 0 {
		if difficulty >= 256 {
			return false
		}
		target = new(big.Int).Lsh(big.NewInt(1), uint(256-difficulty))
	}
	return value.Cmp(target) < 0
}

// NextDifficulty retargets from the observed solvetime of the most recent
// window. The window is the last retargeting_window blocks in chain order;
// between retarget points the current difficulty carries forward. The
// result never falls below diff_rebalance_offset.
func NextDifficulty(current uint64, window []*types.Block) uint64 {
	cfg := config.AppConfig
	next := current

	if uint64(len(window)) >= cfg.RetargetingWindow && len(window) >= 2 {
		first := window[0]
		last := window[len(window)-1]
		actual := last.Timestamp - first.Timestamp
		expected := cfg.TargetSolvetime * int64(len(window)-1)

		switch {
		case actual*2 < expected:
			next = current + 1
		case actual > expected*2 && current > 0:
			next = current - 1
		}
	}

	if next < cfg.DiffRebalanceOffset {
		next = cfg.DiffRebalanceOffset
	}
	return next
}
