// Package main runs the SCDAid MCP server. By default it needs no external services:
// feedback lives in SQLite under the data directory and the run audit is in memory.
// With --full it reads config.yaml and wires Postgres, Redis and the phenotype predictor.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scdaid-mcp-server/internal/app"
	"github.com/scdaid-mcp-server/internal/config"
	"github.com/scdaid-mcp-server/internal/mcp"
	"github.com/scdaid-mcp-server/internal/render"
	"github.com/scdaid-mcp-server/internal/setup"
)

var version = "1.0.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var full bool
	var configFile string

	root := &cobra.Command{
		Use:          "mcp-server",
		Short:        "SCDAid VOC analgesia decision support over the Model Context Protocol",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if full {
				return runFull(ctx, configFile)
			}
			return runLite(ctx)
		},
	}
	root.Flags().BoolVar(&full, "full", false, "use config.yaml with database, cache and predictor")
	root.Flags().StringVar(&configFile, "config", "", "config file for --full")
	root.AddCommand(setup.NewCommand())
	return root
}

func runLite(ctx context.Context) error {
	cfg := config.LoadLiteConfig()

	// stdout carries the stdio transport, so logs always go to stderr
	logger, logCloser, err := config.NewLogger(cfg.Logging())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	display, err := render.OptionsFromConfig(cfg.Display())
	if err != nil {
		return err
	}

	components, err := app.BuildLite(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Close()

	logger.WithFields(logrus.Fields{
		"transport": cfg.Transport,
		"data_dir":  cfg.DataDir,
		"predictor": cfg.PhenotypeURL != "",
	}).Info("Starting SCDAid MCP server (lite)")

	return serve(ctx, mcp.Options{
		Version:   version,
		Transport: cfg.Transport,
		HTTPPort:  cfg.HTTPPort,
		Display:   display,
		ExportDir: cfg.ExportDir(),
	}, components, logger)
}

func runFull(ctx context.Context, configFile string) error {
	configManager, err := config.NewManager(config.WithConfigFile(configFile))
	if err != nil {
		return err
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := configManager.GetConfig()

	if cfg.MCP.TransportType != mcp.TransportHTTP && cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, logCloser, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	display, err := render.OptionsFromConfig(cfg.Display)
	if err != nil {
		return err
	}

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Close()

	return serve(ctx, mcp.Options{
		Name:      cfg.MCP.ServerName,
		Version:   cfg.MCP.ServerVersion,
		Transport: cfg.MCP.TransportType,
		HTTPHost:  cfg.MCP.HTTPHost,
		HTTPPort:  cfg.MCP.HTTPPort,
		Display:   display,
		ExportDir: config.DefaultLiteConfig().ExportDir(),
	}, components, logger)
}

func serve(ctx context.Context, opts mcp.Options, components *app.Components, logger *logrus.Logger) error {
	server, err := mcp.NewServer(opts, mcp.Dependencies{
		Advisor:  components.Advisor,
		Feedback: components.Feedback,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("SCDAid MCP server stopped")
	return nil
}
