package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ghostnetwork/ghost-node/internal/srp"
)

// PeerStore backs the SRP authenticator and the supervisor's dial list.
type PeerStore struct {
	db *gorm.DB
}

func NewPeerStore(dm *DatabaseManager) *PeerStore {
	return &PeerStore{db: dm.GetPeerDB()}
}

func (ps *PeerStore) LoadCredential(identifier string) (*srp.Credential, error) {
	var rec PeerCredential
	err := ps.db.Where("identifier = ?", identifier).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &srp.Credential{
		Identifier: rec.Identifier,
		Salt:       rec.Salt,
		Prime:      rec.Prime,
		Generator:  rec.Generator,
		Verifier:   rec.Verifier,
	}, nil
}

func (ps *PeerStore) SaveCredential(cred *srp.Credential) error {
	rec := PeerCredential{
		Identifier: cred.Identifier,
		Salt:       cred.Salt,
		Prime:      cred.Prime,
		Generator:  cred.Generator,
		Verifier:   cred.Verifier,
	}
	return ps.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

// KnownPeers returns the dial list in insertion order as "ip:port".
func (ps *PeerStore) KnownPeers() []string {
	var peers []KnownPeer
	if err := ps.db.Order("id asc").Find(&peers).Error; err != nil {
		return nil
	}
	list := make([]string, 0, len(peers))
	for _, p := range peers {
		list = append(list, net.JoinHostPort(p.IP, strconv.Itoa(p.Port)))
	}
	return list
}

func (ps *PeerStore) AddKnownPeer(ip string, port int) error {
	return ps.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&KnownPeer{IP: ip, Port: port}).Error
}

// IsRegistered reports whether this node has registered with addr before,
// which decides between the register and login handshake paths.
func (ps *PeerStore) IsRegistered(addr string) bool {
	ip, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	port, _ := strconv.Atoi(portStr)
	var rec KnownPeer
	if err := ps.db.Where("ip = ? AND port = ?", ip, port).First(&rec).Error; err != nil {
		return false
	}
	return rec.Registered
}

func (ps *PeerStore) MarkRegistered(addr string) error {
	ip, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	port, _ := strconv.Atoi(portStr)
	return ps.db.Model(&KnownPeer{}).
		Where("ip = ? AND port = ?", ip, port).
		Update("registered", true).Error
}

// ChainStateStore is the opaque contract/chainstate KV. Values are JSON
// maps; Update merges the given fields into whatever is stored.
type ChainStateStore struct {
	db *gorm.DB
}

func NewChainStateStore(dm *DatabaseManager) *ChainStateStore {
	return &ChainStateStore{db: dm.GetChainDB()}
}

func (cs *ChainStateStore) Get(key string) ([]byte, error) {
	var rec ChainState
	err := cs.db.Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func (cs *ChainStateStore) Update(key string, fields map[string][]byte) error {
	current, err := cs.Get(key)
	if err != nil {
		return err
	}

	merged := map[string][]byte{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			return fmt.Errorf("stored value under %q is not mergeable: %w", key, err)
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	value, err := json.Marshal(merged)
	if err != nil {
		return err
	}

	return cs.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&ChainState{Key: key, Value: value}).Error
}
