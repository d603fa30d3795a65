package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tradesafe/audit"
	"tradesafe/config"
	"tradesafe/core"
	"tradesafe/core/events"
	"tradesafe/core/state"
	"tradesafe/observability/logging"
	"tradesafe/rpc"
	"tradesafe/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	ephemeral := flag.Bool("ephemeral", false, "DEV ONLY: run on an in-memory database")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TRADESAFE_ENV"))
	logger := logging.Setup("tradesafed", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "path", *configFile, "err", err)
		os.Exit(1)
	}

	var db storage.Database
	if *ephemeral {
		db = storage.NewMemDB()
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			logger.Error("failed to create data dir", "dir", cfg.DataDir, "err", err)
			os.Exit(1)
		}
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
		if err != nil {
			logger.Error("failed to open state database", "err", err)
			os.Exit(1)
		}
		db = ldb
	}
	defer db.Close()

	node := core.NewNode(state.NewManager(db))

	treasury, err := cfg.FeeTreasuryAddress()
	if err != nil {
		logger.Error("invalid fee treasury", "err", err)
		os.Exit(1)
	}
	node.SetFeeTreasury(treasury)

	recorder, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		logger.Error("failed to open audit store", "path", cfg.AuditDBPath, "err", err)
		os.Exit(1)
	}
	defer recorder.Close()
	node.SetEmitter(events.Fanout{recorder})

	server := rpc.NewServer(node, logger)
	logger.Info("tradesafed ready", "rpc", cfg.RPCAddress, "env", cfg.Environment)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
