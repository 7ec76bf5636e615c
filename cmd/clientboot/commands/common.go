package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/clientboot/internal/activation"
	"git.home.luguber.info/inful/clientboot/internal/bootstrap"
	"git.home.luguber.info/inful/clientboot/internal/config"
	"git.home.luguber.info/inful/clientboot/internal/foundation/errors"
	"git.home.luguber.info/inful/clientboot/internal/kvstore"
	"git.home.luguber.info/inful/clientboot/internal/metrics"
)

// Global is shared with every subcommand's Run.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"clientboot.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init      InitCmd      `cmd:"" help:"Write an example configuration file"`
	Bootstrap BootstrapCmd `cmd:"" help:"Run the client bootstrap once and print the report"`
	Status    StatusCmd    `cmd:"" help:"Show the persisted client state and lease"`
	Reset     ResetCmd     `cmd:"" help:"Remove the persisted client state and lease"`
	Serve     ServeCmd     `cmd:"" help:"Run the reference activation endpoint"`
	Simulate  SimulateCmd  `cmd:"" help:"Race several coordinator instances against one store"`
	Daemon    DaemonCmd    `cmd:"" help:"Re-run the bootstrap periodically to refresh the client token"`
}

// AfterApply runs after flag parsing; it installs a provisional logger until
// the configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// LoadConfig loads the configuration file and reconfigures logging from it.
// A missing file is not an error: built-in defaults are used instead.
func (c *CLI) LoadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		if !errors.HasCategory(err, errors.CategoryNotFound) {
			return nil, err
		}
		slog.Debug("No configuration file, using defaults", slog.String("path", c.Config))
		cfg = config.Default()
	}
	logger := cfg.Logging.NewLogger(os.Stderr, c.Verbose)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	return kvstore.Open(ctx, cfg.Storage)
}

func closeStore(store kvstore.Store) {
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close store", slog.String("error", err.Error()))
	}
}

// newCoordinator wires a coordinator for cfg against the given activator.
func newCoordinator(cfg *config.Config, store kvstore.Store, activator activation.Activator, recorder metrics.Recorder) *bootstrap.Coordinator {
	opts := bootstrap.OptionsFromConfig(cfg.Coordinator)
	opts.Recorder = recorder
	opts.Logger = slog.Default()
	return bootstrap.New(store, activator, opts)
}

func newActivationClient(cfg config.ActivationConfig) (*activation.Client, error) {
	return activation.NewClient(cfg, activation.WithLogger(slog.Default()))
}
