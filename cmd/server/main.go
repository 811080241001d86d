package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/scdaid-mcp-server/internal/api"
	"github.com/scdaid-mcp-server/internal/app"
	"github.com/scdaid-mcp-server/internal/config"
)

func main() {
	configFile := flag.String("config", "", "path to config.yaml")
	envFile := flag.String("env-file", "", "path to a .env file")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManager(config.WithConfigFile(*configFile), config.WithEnvFile(*envFile))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, logCloser, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize components")
	}
	defer components.Close()

	server, err := api.NewServer(configManager, api.Dependencies{
		Advisor:      components.Advisor,
		Feedback:     components.Feedback,
		Runs:         components.Runs,
		HealthChecks: components.Health,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create HTTP server")
	}

	logger.WithField("port", cfg.Server.Port).Info("Starting SCDAid API server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
