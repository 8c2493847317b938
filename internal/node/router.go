package node

import (
	"encoding/base64"
	"sync"

	goerrors "github.com/go-errors/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ghostnetwork/ghost-node/internal/config"
	"github.com/ghostnetwork/ghost-node/internal/consensus"
	"github.com/ghostnetwork/ghost-node/internal/ghost"
	"github.com/ghostnetwork/ghost-node/internal/p2p"
	"github.com/ghostnetwork/ghost-node/internal/state"
	"github.com/ghostnetwork/ghost-node/internal/types"
)

// Application-level message types carried over Ghost frames. The payload
// is the canonical serialization, base64-encoded into a string parameter.
const (
	MsgTypeNewBlock       = "NEW_BLOCK"
	MsgTypeNewTransaction = "NEW_TRANSACTION"

	paramData      = "DATA"
	paramRequestID = "REQUEST_ID"
)

const seenCap = 16384

// Gossiper is the fan-out surface of the handler fleet.
type Gossiper interface {
	Gossip(msgType string, params ...ghost.Param)
}

// Node is the parent consumer behind the handler fleet: it owns block and
// transaction ingress, invokes the validator, applies accepted objects and
// re-gossips them.
type Node struct {
	ledger *state.MemoryLedger
	pool   state.UtxoPool
	events *state.Events
	logger *log.Entry

	mu       sync.Mutex
	gossiper Gossiper
	seen     map[string]bool
}

func NewNode(ledger *state.MemoryLedger, pool state.UtxoPool, events *state.Events) *Node {
	return &Node{
		ledger: ledger,
		pool:   pool,
		events: events,
		seen:   make(map[string]bool),
		logger: log.WithFields(log.Fields{
			"module": "node",
		}),
	}
}

// SetGossiper breaks the construction cycle between the node and the
// fleet that routes to it.
func (n *Node) SetGossiper(g Gossiper) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gossiper = g
}

// Deliver consumes one decrypted frame from a handler. It never panics on
// peer input; anything malformed is logged and dropped.
func (n *Node) Deliver(frame ghost.Frame, from *p2p.Handler) {
	switch frame.Type {
	case MsgTypeNewBlock:
		n.handleBlock(frame, from)
	case MsgTypeNewTransaction:
		n.handleTransaction(frame, from)
	default:
		n.logger.Warnf("Unknown message type %q from %s", frame.Type, from.Peername())
	}
}

func (n *Node) handleBlock(frame ghost.Frame, from *p2p.Handler) {
	raw, err := framePayload(frame)
	if err != nil {
		n.logger.Warnf("Bad %s payload from %s: %v", frame.Type, from.Peername(), err)
		return
	}
	block, err := types.SanitizeBlock(raw)
	if err != nil {
		n.logger.Warnf("Rejecting block from %s: %v", from.Peername(), err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.seen[block.Hash] {
		return
	}
	n.markSeen(block.Hash)

	last := n.ledger.LastBlock()
	difficulty := n.expectedDifficulty(&block, last)
	if err := consensus.ValidateBlock(&block, difficulty, last, n.pool.IsSpendable); err != nil {
		wrapped := goerrors.Wrap(err, 0)
		n.logger.Infof("Rejecting block %d from %s: %v", block.Index.Uint64(), from.Peername(), wrapped)
		return
	}

	if err := n.ledger.Append(&block); err != nil {
		n.logger.Errorf("Failed to append block %d: %v", block.Index.Uint64(), err)
		return
	}
	n.pool.ApplyBlock(&block)
	n.events.PublishBlock(block)
	n.logger.Infof("Accepted block %d (%s) with %d transactions",
		block.Index.Uint64(), block.Hash, len(block.Transactions))

	n.gossipLocked(MsgTypeNewBlock, block.Encode())
}

func (n *Node) handleTransaction(frame ghost.Frame, from *p2p.Handler) {
	raw, err := framePayload(frame)
	if err != nil {
		n.logger.Warnf("Bad %s payload from %s: %v", frame.Type, from.Peername(), err)
		return
	}
	tx, err := types.SanitizeTransaction(raw)
	if err != nil {
		n.logger.Warnf("Rejecting transaction from %s: %v", from.Peername(), err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.seen[tx.ID] {
		return
	}
	n.markSeen(tx.ID)

	if err := consensus.ValidateTransaction(tx, n.pool.IsSpendable); err != nil {
		n.logger.Infof("Rejecting transaction %s from %s: %v", tx.ID, from.Peername(), err)
		return
	}

	n.pool.ApplyTransaction(tx)
	n.events.PublishTransaction(tx)
	n.logger.Debugf("Accepted transaction %s", tx.ID)

	n.gossipLocked(MsgTypeNewTransaction, tx.CanonicalBytes())
}

// BroadcastBlock announces a locally produced block to the mesh.
func (n *Node) BroadcastBlock(block *types.Block) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.markSeen(block.Hash)
	n.gossipLocked(MsgTypeNewBlock, block.Encode())
}

// BroadcastTransaction announces a locally submitted transaction.
func (n *Node) BroadcastTransaction(tx types.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.markSeen(tx.ID)
	n.gossipLocked(MsgTypeNewTransaction, tx.CanonicalBytes())
}

func (n *Node) gossipLocked(msgType string, payload []byte) {
	if n.gossiper == nil {
		return
	}
	n.gossiper.Gossip(msgType,
		ghost.StrParam(paramRequestID, uuid.New().String()),
		ghost.StrParam(paramData, base64.StdEncoding.EncodeToString(payload)))
}

// expectedDifficulty is the difficulty this node demands for the next
// block. The genesis difficulty is taken from the block itself; afterwards
// the tip difficulty carries forward through the retargeting schedule,
// which retargets when the next index is a multiple of retargeting_window.
func (n *Node) expectedDifficulty(block *types.Block, last *types.Block) uint64 {
	if last == nil {
		return block.Difficulty
	}
	var window []*types.Block
	if w := config.AppConfig.RetargetingWindow; w > 0 && (last.Index.Uint64()+1)%w == 0 {
		window = n.ledger.RecentBlocks(int(w))
	}
	return consensus.NextDifficulty(last.Difficulty, window)
}

func (n *Node) markSeen(id string) {
	if len(n.seen) >= seenCap {
		n.seen = make(map[string]bool)
	}
	n.seen[id] = true
}

func framePayload(frame ghost.Frame) ([]byte, error) {
	data, ok := frame.Str(paramData)
	if !ok {
		return nil, goerrors.Errorf("frame carries no %s parameter", paramData)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, goerrors.Errorf("payload is not base64: %v", err)
	}
	return raw, nil
}
