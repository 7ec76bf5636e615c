package commands

import (
	"fmt"

	"git.home.luguber.info/inful/clientboot/internal/clientstate"
)

// ResetCmd implements the 'reset' command. It is the only way the persisted
// state is ever cleared.
type ResetCmd struct{}

func (r *ResetCmd) Run(g *Global, root *CLI) error {
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

	for _, key := range []string{clientstate.StateKey, clientstate.LeaseKey} {
		if err := store.Remove(ctx, key); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintln(g.out(), "client state reset")
	return nil
}
