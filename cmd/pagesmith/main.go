package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pagesmith/cmd/pagesmith/commands"
	siteerrors "git.home.luguber.info/inful/pagesmith/internal/errors"
	"git.home.luguber.info/inful/pagesmith/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("pagesmith"),
		kong.Description("Render a static site from YAML page definitions, widgets and templates."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	err := ctx.Run(&commands.Global{}, &cli)
	adapter := siteerrors.NewCLIErrorAdapter(cli.Verbose, nil)
	os.Exit(adapter.HandleError(err))
}
