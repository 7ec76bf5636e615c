package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/clientboot/cmd/clientboot/commands"
	derrors "git.home.luguber.info/inful/clientboot/internal/foundation/errors"
	"git.home.luguber.info/inful/clientboot/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("clientboot"),
		kong.Description("Coordinate one-time client activation across instances sharing a store."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{Logger: slog.Default(), Out: os.Stdout}, cli)
	derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
