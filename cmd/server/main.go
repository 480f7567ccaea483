// Command server runs the case workflow HTTP API and its background workers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/garyjia/case-workflow/internal/config"
	"github.com/garyjia/case-workflow/internal/container"
	httpserver "github.com/garyjia/case-workflow/internal/interfaces/http"
	"github.com/garyjia/case-workflow/pkg/utils"
)

func main() {
	cmd := &cli.Command{
		Name:  "case-workflow",
		Usage: "Serve the case workflow API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the YAML configuration file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional .env file loaded before the environment is read",
				Value: ".env",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "case-workflow: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	cfg, err := config.Load(config.Options{
		ConfigPath: command.String("config"),
		EnvFile:    command.String("env-file"),
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    cfg.Logger.Service,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting case workflow service",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Provider),
		zap.Bool("notification", cfg.Notification.Enabled),
		zap.Bool("analyzer", cfg.Analyzer.Enabled))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	services := c.Services()
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, httpserver.Services{
		Cases:     services.Cases,
		Workflows: services.Workflows,
		Actions:   services.Actions,
		Exports:   services.Exports,
		Analyses:  services.Analyses,
		Reference: services.Reference,
		Engine:    c.Engine(),
	}, c, c.ServiceLogger())

	// Start blocks until SIGINT/SIGTERM cancels ctx
	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Server exited")
	return nil
}
