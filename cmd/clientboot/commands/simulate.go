package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/clientboot/internal/bootstrap"
	"git.home.luguber.info/inful/clientboot/internal/clientstate"
	"git.home.luguber.info/inful/clientboot/internal/simulate"
)

// SimulateCmd implements the 'simulate' command.
type SimulateCmd struct {
	Instances int           `short:"n" help:"Number of coordinator instances" default:"5"`
	Spread    time.Duration `help:"Stagger instance start times across this duration" default:"0s"`
	FailEvery int           `help:"Make every n-th activation fail on the in-process endpoint"`
	Remote    bool          `help:"Use activation.base_url instead of an in-process endpoint"`
	Keep      bool          `help:"Do not clear the client state before the run"`
}

func (s *SimulateCmd) Run(g *Global, root *CLI) error {
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

	if !s.Keep {
		for _, key := range []string{clientstate.StateKey, clientstate.LeaseKey} {
			if err := store.Remove(ctx, key); err != nil {
				return err
			}
		}
	}

	activationCfg := cfg.Activation
	if !s.Remote {
		serverCfg := cfg.Server
		serverCfg.ListenAddr = "127.0.0.1:0"
		serverCfg.FailEvery = s.FailEvery
		local := *cfg
		local.Server = serverCfg
		srv := newServer(&local)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := srv.Stop(stopCtx); err != nil {
				slog.Warn("Failed to stop in-process activation server", slog.String("error", err.Error()))
			}
		}()
		activationCfg.BaseURL = srv.URL()
	}

	// One client shared by every instance: they are one browser sharing a cookie jar.
	client, err := newActivationClient(activationCfg)
	if err != nil {
		return err
	}

	opts := bootstrap.OptionsFromConfig(cfg.Coordinator)
	sum, err := simulate.Run(ctx, simulate.Options{
		Instances:   s.Instances,
		Spread:      s.Spread,
		Store:       store,
		Activator:   client,
		Coordinator: opts,
		Logger:      slog.Default(),
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.out(), sum.String())
	return nil
}
