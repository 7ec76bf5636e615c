package commands

import (
	"context"
	"fmt"
	"io"

	"git.home.luguber.info/inful/clientboot/internal/clientstate"
	"git.home.luguber.info/inful/clientboot/internal/foundation/errors"
	"git.home.luguber.info/inful/clientboot/internal/kvstore"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	Watch bool `short:"w" help:"Keep running and print every change (fs backend only)"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
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

	out := g.out()
	if err := printStatus(ctx, out, store); err != nil {
		return err
	}
	if !s.Watch {
		return nil
	}

	fs, ok := store.(*kvstore.FSStore)
	if !ok {
		return errors.ValidationError("--watch requires the fs storage backend").
			WithContext("backend", string(cfg.Storage.Backend)).
			Build()
	}
	err = fs.Watch(ctx, func(c kvstore.Change) {
		_, _ = fmt.Fprintf(out, "%s changed: %s\n", c.Key, describe(c.Key, c.Value, c.Present))
	}, clientstate.StateKey, clientstate.LeaseKey)
	if err != nil {
		return errors.StorageError("failed to watch client state").WithCause(err).Build()
	}
	<-ctx.Done()
	return nil
}

func printStatus(ctx context.Context, w io.Writer, store kvstore.Store) error {
	for _, key := range []string{clientstate.StateKey, clientstate.LeaseKey} {
		v, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", key, describe(key, v, ok))
	}
	return nil
}

func describe(key, value string, present bool) string {
	if !present {
		return "<unset>"
	}
	if key == clientstate.StateKey {
		return fmt.Sprintf("%s (%s)", value, clientstate.Parse(value, present))
	}
	return value
}
