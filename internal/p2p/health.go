package p2p

import (
	"context"
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ghostnetwork/ghost-node/internal/config"
)

// HealthResponder answers single-byte liveness probes on its own port:
// 0x00 in, 0x01 out, then the connection is closed and the next probe is
// accepted. One probe is served at a time; concurrent probes wait in the
// kernel backlog.
type HealthResponder struct {
	mu       sync.Mutex
	listener net.Listener
}

func NewHealthResponder() *HealthResponder {
	return &HealthResponder{}
}

func (hr *HealthResponder) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", config.AppConfig.HealthPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on health port %s: %w", addr, err)
	}
	hr.mu.Lock()
	hr.listener = listener
	hr.mu.Unlock()
	log.Infof("Health check listening on %s", listener.Addr())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Errorf("Health accept failed: %v", err)
				return err
			}
		}
		hr.serve(conn)
	}
}

func (hr *HealthResponder) serve(conn net.Conn) {
	defer conn.Close()
	probe := make([]byte, 1)
	if _, err := conn.Read(probe); err != nil {
		return
	}
	if probe[0] != 0x00 {
		return
	}
	if _, err := conn.Write([]byte{0x01}); err != nil {
		log.Debugf("Health reply failed: %v", err)
	}
}

// Addr is the bound health address, nil before Start.
func (hr *HealthResponder) Addr() net.Addr {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	if hr.listener == nil {
		return nil
	}
	return hr.listener.Addr()
}
