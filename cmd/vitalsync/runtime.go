package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/internal/aggregator"
	"github.com/vitalsync/vitalsync/internal/config"
	"github.com/vitalsync/vitalsync/internal/radio"
	"github.com/vitalsync/vitalsync/internal/store"
	"github.com/vitalsync/vitalsync/internal/syncer"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// runtime bundles the wired acquisition pipeline for the daemon commands.
type runtime struct {
	cfg     *config.Config
	logger  *logrus.Logger
	manager *radio.Manager
	engine  *syncer.Engine
	store   *store.Store
}

// buildRuntime wires the full pipeline: radio manager, aggregator client,
// store and engine. The radio link is optional; when no device address is
// configured the engine runs on aggregator data alone.
func buildRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	manager := radio.NewManager(logger)
	if cfg.Radio.DeviceAddress != "" {
		if err := manager.Connect(ctx, cfg.Radio.DeviceAddress, cfg.ConnectTimeout()); err != nil {
			if errors.Is(err, radio.ErrNoStandardServices) {
				fmt.Println("Note: " + FormatUserError(err))
			} else {
				// A dead wearable must not block aggregator syncing.
				logger.WithField("error", err).Warn("Configured device unavailable, continuing without radio link")
			}
		}
	}

	provider := aggregator.NewHTTPProvider(cfg.Bridge.URL, cfg.BridgeTimeout(), logger)
	client := aggregator.NewClient(provider, logger)

	engine := syncer.NewEngine(manager, client, st, logger,
		syncer.WithStaleWindow(cfg.StaleWindow()))
	engine.SetUser(cfg.UserID)

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		engine:  engine,
		store:   st,
	}, nil
}

func (r *runtime) close() {
	r.engine.Stop()
	if err := r.manager.Disconnect(); err != nil {
		r.logger.WithField("error", err).Warn("Disconnect on shutdown reported errors")
	}
	if err := r.store.Close(); err != nil {
		r.logger.WithField("error", err).Warn("Store close reported errors")
	}
}
