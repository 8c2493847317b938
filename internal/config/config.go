package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var AppConfig Config

func InitConfig() {
	viper.AutomaticEnv()

	// Default config
	viper.SetDefault("PORT", 31013)
	viper.SetDefault("HEALTH_PORT", 31014)
	viper.SetDefault("API_PORT", "8080")
	viper.SetDefault("MAX_BIDIRECTIONAL_CONNECTIONS", 10)
	viper.SetDefault("MAX_INBOUND_CONNECTIONS", 90)
	viper.SetDefault("SEED_PEERS", "")
	viper.SetDefault("BLOCK_SIZE_LIMIT", 8*1024*1024)
	viper.SetDefault("FUTURE_TIME_LIMIT", 60)
	viper.SetDefault("TARGET_SOLVETIME", 120)
	viper.SetDefault("RETARGETING_WINDOW", 10)
	viper.SetDefault("DIFF_REBALANCE_OFFSET", 1)
	viper.SetDefault("BLOCK_AT_FULL_EMISSION", 1000000)
	viper.SetDefault("TOTAL_TOKEN_SUPPLY", "500000000000000000")
	viper.SetDefault("ADDRESS_VERSION", 58)
	viper.SetDefault("GHOST_PROTOCOL_VERSION", 1)
	viper.SetDefault("DATA_PATH", "/app/data")
	viper.SetDefault("NODE_IDENTIFIER", "")
	viper.SetDefault("NODE_SECRET", "")
	viper.SetDefault("LOG_LEVEL", "info")

	logLevel, err := logrus.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}

	AppConfig = Config{
		Port:                 viper.GetInt("PORT"),
		HealthPort:           viper.GetInt("HEALTH_PORT"),
		APIPort:              viper.GetString("API_PORT"),
		MaxBidirectional:     viper.GetInt("MAX_BIDIRECTIONAL_CONNECTIONS"),
		MaxInbound:           viper.GetInt("MAX_INBOUND_CONNECTIONS"),
		SeedPeers:            splitPeers(viper.GetString("SEED_PEERS")),
		BlockSizeLimit:       viper.GetInt("BLOCK_SIZE_LIMIT"),
		FutureTimeLimit:      viper.GetInt64("FUTURE_TIME_LIMIT"),
		TargetSolvetime:      viper.GetInt64("TARGET_SOLVETIME"),
		RetargetingWindow:    viper.GetUint64("RETARGETING_WINDOW"),
		DiffRebalanceOffset:  viper.GetUint64("DIFF_REBALANCE_OFFSET"),
		BlockAtFullEmission:  viper.GetUint64("BLOCK_AT_FULL_EMISSION"),
		TotalTokenSupply:     viper.GetString("TOTAL_TOKEN_SUPPLY"),
		AddressVersion:       byte(viper.GetUint32("ADDRESS_VERSION")),
		GhostProtocolVersion: viper.GetInt64("GHOST_PROTOCOL_VERSION"),
		DataPath:             viper.GetString("DATA_PATH"),
		NodeIdentifier:       viper.GetString("NODE_IDENTIFIER"),
		NodeSecret:           viper.GetString("NODE_SECRET"),
		LogLevel:             logLevel,
	}

	if AppConfig.MaxBidirectional > AppConfig.MaxInbound {
		logrus.Warnf("Bidirectional slots exceed total pool size, capping to %d", AppConfig.MaxInbound)
		AppConfig.MaxBidirectional = AppConfig.MaxInbound
	}

	logrus.Infof("Init config, Port %d, MaxBidirectional %d, MaxInbound %d, DataPath %s",
		AppConfig.Port, AppConfig.MaxBidirectional, AppConfig.MaxInbound, AppConfig.DataPath)

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(AppConfig.LogLevel)
}

func splitPeers(raw string) []string {
	var peers []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}

type Config struct {
	Port                 int
	HealthPort           int
	APIPort              string
	MaxBidirectional     int
	MaxInbound           int
	SeedPeers            []string
	BlockSizeLimit       int
	FutureTimeLimit      int64
	TargetSolvetime      int64
	RetargetingWindow    uint64
	DiffRebalanceOffset  uint64
	BlockAtFullEmission  uint64
	TotalTokenSupply     string
	AddressVersion       byte
	GhostProtocolVersion int64
	DataPath             string
	NodeIdentifier       string
	NodeSecret           string
	LogLevel             logrus.Level
}
