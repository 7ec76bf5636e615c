package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/clientboot/internal/metrics"
	"git.home.luguber.info/inful/clientboot/internal/refresher"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct{}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	client, err := newActivationClient(cfg.Activation)
	if err != nil {
		return err
	}
	coord := newCoordinator(cfg, store, client, metrics.NoopRecorder{})

	r, err := refresher.New(coord, cfg.Daemon.RefreshInterval, slog.Default())
	if err != nil {
		return err
	}
	if err := r.Start(ctx); err != nil {
		return err
	}
	slog.Info("Daemon started, waiting for shutdown signal...")

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon...")
	if err := r.Stop(); err != nil {
		return fmt.Errorf("failed to stop refresher: %w", err)
	}
	slog.Info("Daemon stopped", slog.Int64("runs", r.RunCount()))
	return nil
}
