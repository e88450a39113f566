package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/devicefactory"
	"github.com/srg/hrmon/internal/telemetry"
	"github.com/srg/hrmon/pkg/config"
	"github.com/srg/hrmon/session"
)

// adapterSource returns the local adapters. This is a variable so that it can be overridden in tests.
var adapterSource = func(logger *logrus.Logger, cfg *config.Config) ([]device.Adapter, error) {
	return devicefactory.Adapters(logger, devicefactory.Options{NotificationBuffer: cfg.NotificationBuffer})
}

// loadConfig reads --config when given and applies the global flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg := config.DefaultConfig()
	var fileCfg *config.Config

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
		fileCfg = loaded
	}
	if adapter, _ := cmd.Flags().GetString("adapter"); adapter != "" {
		cfg.Adapter = adapter
	}

	logger, err := configureLogger(cmd, fileCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newManager wires the adapters, telemetry store and session manager together
func newManager(cfg *config.Config, logger *logrus.Logger) (*session.Manager, error) {
	adapters, err := adapterSource(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate bluetooth adapters: %w", err)
	}

	store := telemetry.NewStore(telemetry.Options{
		HistorySize:  cfg.HistorySize,
		ErrorLogSize: cfg.ErrorLogSize,
	})
	m, err := session.NewManager(adapters, store, logger, session.ManagerOptions{
		ScanWindow:     cfg.ScanWindow,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Adapter != "" {
		if err := m.SelectAdapter(cfg.Adapter); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nCtrl+C pressed, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
