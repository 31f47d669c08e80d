package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/cli"
	"github.com/nhle/collabtask/internal/credential"
	"github.com/nhle/collabtask/internal/logging"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/notify"
	"github.com/nhle/collabtask/internal/session"
	"github.com/nhle/collabtask/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cli.Describe(err))
		os.Exit(1)
	}
}

func run() error {
	// Config path: env var or default ~/.config/collabtask/config.yaml
	configPath := os.Getenv("COLLABTASK_CONFIG")
	if configPath == "" {
		configPath = model.DefaultConfigPath()
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Log)
	defer func() { _ = logger.Sync() }()

	creds, err := credential.Open(cfg.Storage.CredentialsDir)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	sess := session.New(creds, logger.Named("session"))
	if err := sess.Restore(); err != nil {
		// A broken keyring entry should not lock the user out of login.
		logger.Warn("restoring session", zap.Error(err))
	}

	cache, err := store.NewSQLiteStore(cfg.Storage.CachePath)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer cache.Close()

	app := &cli.App{
		Config:  cfg,
		Session: sess,
		Client:  api.NewClient(api.ConfigFrom(cfg.API), sess, logger.Named("api")),
		Store:   cache,
		Logger:  logger,
		Dialer:  notify.WebSocketDialer{},
		Prompt:  cli.FormPrompter{},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
