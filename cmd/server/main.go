package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/internal/cache"
	"github.com/brandon/mailsweep/internal/config"
	"github.com/brandon/mailsweep/internal/email"
	"github.com/brandon/mailsweep/internal/mcp"
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "Show version information")
	checkConfig = flag.Bool("check", false, "Validate configuration and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mailsweep-server version %s\n", version)
		os.Exit(0)
	}

	// Stdout carries the protocol, so logs go to stderr.
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if *checkConfig {
		logger.WithField("accounts", cfg.AccountNames()).Info("Configuration is valid")
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
	logger.Info("Shutting down mailsweep MCP server")
}

// run serves MCP on stdio until the client hangs up or a signal arrives
func run(cfg *config.Config, logger *logrus.Logger) error {
	logger.WithField("cache", cfg.CachePath).Info("Starting mailsweep MCP server")

	scanCache, err := cache.NewCache(cfg.CachePath, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer scanCache.Close()

	store := cache.NewStore(scanCache, logger)

	manager, err := email.NewManager(cfg, store, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to create email manager: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, name := range manager.Accounts() {
		account, err := manager.GetAccount(name)
		if err != nil {
			continue
		}
		if _, err := store.UpsertAccount(ctx, account.Session.Account); err != nil {
			logger.WithError(err).WithField("account", name).Warn("Failed to cache account")
		}
	}

	server, err := mcp.NewServer(cfg, manager, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Run returns on EOF; a signal cancels ctx, but a blocked stdin read
	// only ends when the client closes the pipe, so don't wait for it.
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
		return nil
	case err := <-errChan:
		return err
	}
}
