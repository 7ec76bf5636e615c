package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/clientboot/internal/config"
	"git.home.luguber.info/inful/clientboot/internal/metrics"
	"git.home.luguber.info/inful/clientboot/internal/server/httpserver"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Listen string `short:"l" help:"Override server.listen_addr"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if s.Listen != "" {
		cfg.Server.ListenAddr = s.Listen
	}
	ctx, cancel := signalContext()
	defer cancel()

	srv := newServer(cfg)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Listening on %s\n", srv.URL())

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping activation server")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return srv.Stop(stopCtx)
}

func newServer(cfg *config.Config) *httpserver.Server {
	opts := httpserver.Options{Logger: slog.Default()}
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		opts.Registry = reg
		opts.Recorder = metrics.NewPrometheusRecorder(reg)
	}
	return httpserver.New(cfg.Server, opts)
}
