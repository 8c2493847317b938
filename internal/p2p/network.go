package p2p

import (
	"context"
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ghostnetwork/ghost-node/internal/config"
	"github.com/ghostnetwork/ghost-node/internal/ghost"
	"github.com/ghostnetwork/ghost-node/internal/srp"
	"github.com/ghostnetwork/ghost-node/internal/state"
)

// Fleet is the supervisor of the connection-handler pool. It owns the
// shared listen socket and the registry, spawns bidirectional handlers for
// slots 1..max_bidirectional and inbound-only handlers for the rest, and
// restarts each one independently.
type Fleet struct {
	auth   *srp.Authenticator
	peers  PeerDirectory
	sink   MessageSink
	events *state.Events
	logger *log.Entry

	registry *Registry

	mu       sync.Mutex
	listener net.Listener
}

func NewFleet(auth *srp.Authenticator, peers PeerDirectory, sink MessageSink, events *state.Events) *Fleet {
	return &Fleet{
		auth:     auth,
		peers:    peers,
		sink:     sink,
		events:   events,
		registry: NewRegistry(),
		logger: log.WithFields(log.Fields{
			"module": "p2p",
		}),
	}
}

// Start listens and runs the handler fleet until the context ends.
func (f *Fleet) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", config.AppConfig.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	f.mu.Lock()
	f.listener = listener
	f.mu.Unlock()
	f.logger.Infof("Ghost protocol listening on %s", listener.Addr())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var wg sync.WaitGroup
	for i := 1; i <= config.AppConfig.MaxInbound; i++ {
		h := newHandler(i, i <= config.AppConfig.MaxBidirectional, listener,
			f.registry, f.auth, f.peers, f.peerList, f.sink, f.events)
		f.registry.Add(h)
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.run(ctx)
		}()
	}

	<-ctx.Done()
	f.logger.Info("Fleet is stopping...")
	wg.Wait()
	f.logger.Info("Fleet has stopped.")
	return nil
}

// Addr is the bound listen address, nil before Start.
func (f *Fleet) Addr() net.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return nil
	}
	return f.listener.Addr()
}

// ConnectedHandlers returns every handler with a live session.
func (f *Fleet) ConnectedHandlers() []*Handler {
	return f.registry.Connected()
}

// Gossip fans a typed message out to every connected handler,
// fire-and-forget.
func (f *Fleet) Gossip(msgType string, params ...ghost.Param) {
	handlers := f.registry.Connected()
	for _, h := range handlers {
		h.Send(msgType, params...)
	}
	f.logger.Debugf("Gossiped %s to %d peers", msgType, len(handlers))
}

// peerList is the dial list for bidirectional handlers: the durable
// known-peers list, or the configured seeds while it is still empty.
func (f *Fleet) peerList() []string {
	if peers := f.peers.KnownPeers(); len(peers) > 0 {
		return peers
	}
	return SeedPeers()
}
