package state

import (
	"sync"

	"github.com/ghostnetwork/ghost-node/internal/types"
)

// PeerEvent reports a session joining or leaving the mesh.
type PeerEvent struct {
	Peername  string
	Connected bool
}

// Events fans accepted blocks, accepted transactions and peer session
// changes out to their subscribers. Each kind keeps its own typed channel
// list, so a block can never be delivered where a transaction is expected.
// Publishing never blocks: a subscriber that has fallen behind its buffer
// misses the event, the same best-effort contract gossip has.
type Events struct {
	mu     sync.RWMutex
	blocks []chan types.Block
	txs    []chan types.Transaction
	peers  []chan PeerEvent
}

func NewEvents() *Events {
	return &Events{}
}

// SubscribeBlocks returns a channel of accepted blocks and a cancel
// function that detaches it. The buffer bounds how far the subscriber may
// fall behind before it starts missing blocks.
func (e *Events) SubscribeBlocks(buffer int) (<-chan types.Block, func()) {
	ch := make(chan types.Block, buffer)
	e.mu.Lock()
	e.blocks = append(e.blocks, ch)
	e.mu.Unlock()
	return ch, func() {
		e.mu.Lock()
		e.blocks = detach(e.blocks, ch)
		e.mu.Unlock()
	}
}

func (e *Events) SubscribeTransactions(buffer int) (<-chan types.Transaction, func()) {
	ch := make(chan types.Transaction, buffer)
	e.mu.Lock()
	e.txs = append(e.txs, ch)
	e.mu.Unlock()
	return ch, func() {
		e.mu.Lock()
		e.txs = detach(e.txs, ch)
		e.mu.Unlock()
	}
}

func (e *Events) SubscribePeers(buffer int) (<-chan PeerEvent, func()) {
	ch := make(chan PeerEvent, buffer)
	e.mu.Lock()
	e.peers = append(e.peers, ch)
	e.mu.Unlock()
	return ch, func() {
		e.mu.Lock()
		e.peers = detach(e.peers, ch)
		e.mu.Unlock()
	}
}

func (e *Events) PublishBlock(block types.Block) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	offer(e.blocks, block)
}

func (e *Events) PublishTransaction(tx types.Transaction) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	offer(e.txs, tx)
}

func (e *Events) PublishPeer(ev PeerEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	offer(e.peers, ev)
}

func offer[T any](subs []chan T, ev T) {
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func detach[T any](subs []chan T, ch chan T) []chan T {
	for i, c := range subs {
		if c == ch {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
