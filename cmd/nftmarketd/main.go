package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"nftmarket/config"
	"nftmarket/core/state"
	"nftmarket/crypto"
	"nftmarket/native/market"
	"nftmarket/native/nft"
	"nftmarket/observability"
	"nftmarket/observability/logging"
	"nftmarket/rpc"
	"nftmarket/storage"
)

const (
	envEnvironment = "NFTMARKET_ENV"
	envRPCToken    = "NFTMARKET_RPC_TOKEN"
	envAdminPass   = "NFTMARKET_ADMIN_PASS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	rpcAddr := flag.String("rpc", "", "Override the RPC listen address from the config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv(envEnvironment))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup("nftmarketd", env, cfg.LogLevel)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	ledger, err := storage.NewLedger(db, 0)
	if err != nil {
		panic(fmt.Sprintf("Failed to open ledger store: %v", err))
	}
	manager := state.NewManager(ledger)

	recorder := observability.NewEventRecorder(logger)

	registry := nft.NewEngine()
	registry.SetState(manager)
	registry.SetEmitter(recorder)

	marketplace := market.NewEngine()
	marketplace.SetState(manager)
	marketplace.SetEmitter(recorder)

	if cfg.AdminKeystorePath != "" {
		adminKey, err := crypto.LoadFromKeystore(cfg.AdminKeystorePath, os.Getenv(envAdminPass))
		if err != nil {
			panic(fmt.Sprintf("Failed to load admin keystore: %v", err))
		}
		logger.Info("admin key loaded", "address", adminKey.PubKey().Address().String())
	}

	token := strings.TrimSpace(os.Getenv(envRPCToken))
	if token == "" {
		token = cfg.RPCToken
	}
	if token == "" {
		logger.Warn("no RPC token configured, admin methods are disabled")
	}

	addr := cfg.RPCAddress
	if strings.TrimSpace(*rpcAddr) != "" {
		addr = *rpcAddr
	}

	logger.Info("starting nftmarketd",
		"network", cfg.NetworkName,
		"data_dir", cfg.DataDir,
		"rpc_address", addr,
	)

	server := rpc.NewServer(registry, marketplace, token, logger)
	if err := server.Start(addr); err != nil {
		logger.Error("RPC server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
