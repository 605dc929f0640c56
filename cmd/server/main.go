package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasmfaas/internal/capability"
	"github.com/woxQAQ/wasmfaas/internal/config"
	"github.com/woxQAQ/wasmfaas/internal/dispatch"
	"github.com/woxQAQ/wasmfaas/internal/registry"
	"github.com/woxQAQ/wasmfaas/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	flag.Parse()

	// Initialize logger
	logger := zap.L()
	if *logLevel == "debug" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}

	defer logger.Sync()

	logger.Info("Starting wasmfaas",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	// Load configuration
	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Key-value backend shared by every module's kv capability.
	kv, err := capability.NewSQLiteKV(cfg.KVPath)
	if err != nil {
		logger.Fatal("Failed to open key-value store", zap.Error(err))
	}
	defer kv.Close()

	// Discover and deploy the modules present at startup.
	reg := registry.NewRegistry(logger)
	loader := registry.NewLoader(cfg, kv, logger)

	modules, err := loader.Discover(ctx, cfg.ModulePaths)
	if err != nil {
		// An empty deployment is not fatal: modules can still arrive
		// through the deploy endpoint at runtime.
		if _, ok := err.(*registry.NoModulesFoundError); ok {
			logger.Warn("No modules found in configured paths",
				zap.Strings("paths", cfg.ModulePaths),
			)
		} else {
			logger.Fatal("Module discovery failed", zap.Error(err))
		}
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("Failed to register module",
				zap.String("module", m.Name),
				zap.Error(err),
			)
		}
	}
	logger.Info("Modules deployed", zap.Int("count", reg.Count()))

	dispatcher := dispatch.NewDispatcher(cfg.Scheduler, reg, logger)
	srv := server.NewServer(cfg.ListenAddr, reg, dispatcher, loader, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown did not complete cleanly", zap.Error(err))
		}

		reg.RetireAll()
		cancel()
	}()

	if err := srv.Start(); err != nil {
		logger.Fatal("HTTP server error", zap.Error(err))
	}

	logger.Info("Server shutdown complete")
}
