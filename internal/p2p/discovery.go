package p2p

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ghostnetwork/ghost-node/internal/config"
)

const publicIPEndpoint = "https://api.ipify.org"

// SeedPeers is the configured bootstrap list, used while the durable
// known-peers list is empty.
func SeedPeers() []string {
	return config.AppConfig.SeedPeers
}

// FetchPublicIP asks an external echo service for the address this node
// should announce.
func FetchPublicIP() (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(publicIPEndpoint)
	if err != nil {
		return "", fmt.Errorf("failed to fetch public ip: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("echo service returned %q, not an ip", ip)
	}
	return ip, nil
}

// FetchLocalIP resolves the preferred outbound interface address without
// sending any packet.
func FetchLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("failed to probe local ip: %w", err)
	}
	defer conn.Close()
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "", err
	}
	return host, nil
}
