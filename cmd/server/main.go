// Package main - Entry point for the housecost optimization server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"housecost/api"
	"housecost/internal/config"
	"housecost/internal/logging"
)

const version = "1.0.0"

func main() {
	cfgPath := flag.String("config", "", "Path to config file (json, yaml or toml)")
	addr := flag.String("addr", "", "Server address (overrides server.addr)")
	catalogue := flag.String("catalogue", "", "Catalogue CSV (overrides catalogue.path)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *catalogue != "" {
		cfg.Catalogue.Path = *catalogue
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("starting housecost server",
		zap.String("version", version),
		zap.String("catalogue", cfg.Catalogue.Path),
		zap.String("preference_policy", cfg.Preference.Policy))

	if err := api.Run(ctx, cfg, version, logging.Logger); err != nil {
		logging.Error("server failed", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}
}
