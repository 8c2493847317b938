package state

import (
	"sync"

	"github.com/ghostnetwork/ghost-node/internal/types"
)

// UtxoPool answers "is this input currently spendable" and absorbs
// accepted blocks.
type UtxoPool interface {
	IsSpendable(input types.UTXO) bool
	ApplyBlock(block *types.Block)
	ApplyTransaction(tx types.Transaction)
}

// MemoryPool indexes live outputs by txoid.
type MemoryPool struct {
	mu   sync.RWMutex
	live map[string]types.UTXO
}

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{live: make(map[string]types.UTXO)}
}

// IsSpendable requires the referenced output to exist and to match the
// claimed address and amount, so an input cannot inflate itself.
func (p *MemoryPool) IsSpendable(input types.UTXO) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	live, ok := p.live[input.Txoid]
	if !ok {
		return false
	}
	if live.Addr != input.Addr {
		return false
	}
	if live.Amount == nil || input.Amount == nil {
		return false
	}
	return live.Amount.Cmp(input.Amount) == 0
}

func (p *MemoryPool) ApplyBlock(block *types.Block) {
	for _, tx := range block.Transactions {
		p.ApplyTransaction(tx)
	}
}

func (p *MemoryPool) ApplyTransaction(tx types.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, in := range tx.Inputs {
		delete(p.live, in.Txoid)
	}
	for _, out := range tx.Outputs {
		p.live[out.Txoid] = out
	}
}
