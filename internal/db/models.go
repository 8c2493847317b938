package db

import (
	"time"
)

// PeerCredential model, the durable SRP-6a material per peer identifier.
type PeerCredential struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Identifier string    `gorm:"not null;uniqueIndex" json:"identifier"`
	Salt       []byte    `gorm:"not null" json:"salt"`
	Prime      []byte    `gorm:"not null" json:"prime"`
	Generator  []byte    `gorm:"not null" json:"generator"`
	Verifier   []byte    `gorm:"not null" json:"verifier"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// KnownPeer model, the ordered dial list. Registered flips once this node
// has completed a registration handshake against the peer.
type KnownPeer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	IP         string    `gorm:"not null;index:unique_ip_port,unique" json:"ip"`
	Port       int       `gorm:"not null;index:unique_ip_port,unique" json:"port"`
	Registered bool      `gorm:"not null" json:"registered"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// ChainState model, the opaque contract/chainstate KV.
type ChainState struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
