package db

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ghostnetwork/ghost-node/internal/config"
)

type DatabaseManager struct {
	peerDb  *gorm.DB
	chainDb *gorm.DB
}

func NewDatabaseManager() *DatabaseManager {
	dm := &DatabaseManager{}
	dm.initDB(config.AppConfig.DataPath)
	return dm
}

// NewDatabaseManagerAt opens the stores under an explicit directory,
// bypassing the configured data path.
func NewDatabaseManagerAt(dir string) *DatabaseManager {
	dm := &DatabaseManager{}
	dm.initDB(dir)
	return dm
}

func (dm *DatabaseManager) initDB(dataDir string) {
	if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	peerPath := filepath.Join(dataDir, "peer.db")
	peerDb, err := gorm.Open(sqlite.Open(peerPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to peer database: %v", err)
	}
	dm.peerDb = peerDb
	log.Debugf("Peer database connected successfully, path: %s", peerPath)

	chainPath := filepath.Join(dataDir, "chain.db")
	chainDb, err := gorm.Open(sqlite.Open(chainPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to chain database: %v", err)
	}
	dm.chainDb = chainDb
	log.Debugf("Chain database connected successfully, path: %s", chainPath)

	dm.autoMigrate()
	log.Debugf("Database migration completed successfully")
}

func (dm *DatabaseManager) autoMigrate() {
	if err := dm.peerDb.AutoMigrate(&PeerCredential{}, &KnownPeer{}); err != nil {
		log.Fatalf("Failed to migrate peer database: %v", err)
	}
	if err := dm.chainDb.AutoMigrate(&ChainState{}); err != nil {
		log.Fatalf("Failed to migrate chain database: %v", err)
	}
}

func (dm *DatabaseManager) GetPeerDB() *gorm.DB {
	return dm.peerDb
}

func (dm *DatabaseManager) GetChainDB() *gorm.DB {
	return dm.chainDb
}
