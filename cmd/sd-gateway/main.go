package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sealdrive/pkg/app"
	"sealdrive/pkg/config"
	"sealdrive/pkg/logging"
	"sealdrive/pkg/server"

	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is $HOME/.sealdrive/config.yaml)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg := config.Current()

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Settings, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Init Core Application
	signer, err := app.LoadSigner(cfg.Wallet)
	if err != nil {
		return err
	}
	application, err := app.NewApp(ctx, cfg, signer, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Close()

	sess, err := application.OpenSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	logger.Info("sealdrive gateway starting",
		zap.String("signer", sess.Identity.Signing.Hex()),
		zap.String("account", sess.Identity.Query.Hex()),
		zap.String("http", cfg.Server.HTTPAddr),
		zap.String("grpc", cfg.Server.GRPCAddr),
	)

	// 3. Serve until signal
	return server.Gateway(cfg.Server, application.Orchestrator, sess, logging.Module(logger, "gateway")).Run(ctx)
}
