package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/ghostnetwork/ghost-node/internal/config"
	"github.com/ghostnetwork/ghost-node/internal/p2p"
	"github.com/ghostnetwork/ghost-node/internal/state"
)

// Server exposes a read-only status API next to the Ghost protocol port.
type Server struct {
	ledger *state.MemoryLedger
	fleet  *p2p.Fleet
}

func NewServer(ledger *state.MemoryLedger, fleet *p2p.Fleet) *Server {
	return &Server{ledger: ledger, fleet: fleet}
}

func (s *Server) Start(ctx context.Context) {
	r := gin.Default()

	r.GET("/api/v1/status", s.handleStatus)
	r.GET("/api/v1/peers", s.handlePeers)

	addr := ":" + config.AppConfig.APIPort
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Status API is running on port %s", config.AppConfig.APIPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start status API: %v", err)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"height": s.ledger.Height(),
	}
	if last := s.ledger.LastBlock(); last != nil {
		status["last_index"] = last.Index.Uint64()
		status["last_hash"] = last.Hash
		status["difficulty"] = last.Difficulty
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": status})
}

func (s *Server) handlePeers(c *gin.Context) {
	handlers := s.fleet.ConnectedHandlers()
	peers := make([]gin.H, 0, len(handlers))
	for _, h := range handlers {
		peers = append(peers, gin.H{
			"handler": h.ID(),
			"peer":    h.Peername(),
			"state":   h.State().String(),
			"ping_ms": h.Ping().Milliseconds(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": peers})
}
