package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ghostnetwork/ghost-node/internal/api"
	"github.com/ghostnetwork/ghost-node/internal/config"
	"github.com/ghostnetwork/ghost-node/internal/db"
	"github.com/ghostnetwork/ghost-node/internal/node"
	"github.com/ghostnetwork/ghost-node/internal/p2p"
	"github.com/ghostnetwork/ghost-node/internal/srp"
	"github.com/ghostnetwork/ghost-node/internal/state"
)

type Application struct {
	DatabaseManager *db.DatabaseManager
	PeerStore       *db.PeerStore
	ChainState      *db.ChainStateStore
	Ledger          *state.MemoryLedger
	Pool            *state.MemoryPool
	Events          *state.Events
	Node            *node.Node
	Fleet           *p2p.Fleet
	Health          *p2p.HealthResponder
	APIServer       *api.Server
}

func NewApplication() *Application {
	config.InitConfig()

	identifier := config.AppConfig.NodeIdentifier
	if identifier == "" {
		identifier = uuid.New().String()
		log.Warnf("NODE_IDENTIFIER not set, using ephemeral identity %s", identifier)
	}
	secret := config.AppConfig.NodeSecret
	if secret == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			log.Fatalf("Failed to generate node secret: %v", err)
		}
		secret = hex.EncodeToString(raw)
		log.Warn("NODE_SECRET not set, peers will require re-registration after restart")
	}

	dbm := db.NewDatabaseManager()
	peerStore := db.NewPeerStore(dbm)
	chainState := db.NewChainStateStore(dbm)
	ledger := state.NewMemoryLedger()
	pool := state.NewMemoryPool()
	events := state.NewEvents()

	auth := &srp.Authenticator{
		Store:      peerStore,
		Group:      srp.DefaultGroup(),
		Identifier: identifier,
		Secret:     secret,
	}

	n := node.NewNode(ledger, pool, events)
	fleet := p2p.NewFleet(auth, peerStore, n, events)
	n.SetGossiper(fleet)

	return &Application{
		DatabaseManager: dbm,
		PeerStore:       peerStore,
		ChainState:      chainState,
		Ledger:          ledger,
		Pool:            pool,
		Events:          events,
		Node:            n,
		Fleet:           fleet,
		Health:          p2p.NewHealthResponder(),
		APIServer:       api.NewServer(ledger, fleet),
	}
}

func (app *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	if ip, err := p2p.FetchPublicIP(); err == nil {
		log.Infof("Announcing public address %s:%d", ip, config.AppConfig.Port)
	} else if local, lerr := p2p.FetchLocalIP(); lerr == nil {
		log.Infof("No public address available, local address is %s: %v", local, err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.Fleet.Start(ctx); err != nil {
			log.Errorf("Fleet stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.Health.Start(ctx); err != nil {
			log.Errorf("Health responder stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.APIServer.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.persistChainTip(ctx)
	}()

	<-stop
	log.Info("Receiving exit signal...")

	cancel()

	wg.Wait()
	log.Info("Server stopped")
}

// persistChainTip mirrors each accepted tip (hash and index) into the
// chainstate KV under the "chain" key. Nothing reads it back at startup;
// the in-memory ledger starts empty after a restart.
func (app *Application) persistChainTip(ctx context.Context) {
	blocks, cancel := app.Events.SubscribeBlocks(16)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case block := <-blocks:
			err := app.ChainState.Update("chain", map[string][]byte{
				"tip":   []byte(block.Hash),
				"index": block.Index,
			})
			if err != nil {
				log.Errorf("Failed to persist chain tip: %v", err)
			}
		}
	}
}

func main() {
	app := NewApplication()
	app.Run()
}
